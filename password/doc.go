// Package password hashes account passwords with argon2id.
//
// Hashes are stored as PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// Verification uses the parameters embedded in the stored string, so raising
// the configured cost never locks existing accounts out. [Argon2.NeedsUpgrade]
// tells the login path when a stored hash should be replaced.
package password
