package session

import "maps"

// AliasTable maps retired names onto their current spelling.
//
// Types maps old discriminator values to current ones; Fields maps old JSON
// keys to current ones. Version increases whenever an entry is added so a
// deployment can tell which migrations it carries. A name missing from the
// table is not an error: the payload simply stays generic.
type AliasTable struct {
	Version int               `json:"version" mapstructure:"version"`
	Types   map[string]string `json:"types" mapstructure:"types"`
	Fields  map[string]string `json:"fields" mapstructure:"fields"`
}

// DefaultAliasTable returns the renames shipped with this build.
func DefaultAliasTable() AliasTable {
	return AliasTable{
		Version: 2,
		Types: map[string]string{
			"hireauth.session.Record/v1":    TypeName,
			"hireauth.session.LoginSession": TypeName,
			"hireauth.auth.SessionInfo":     TypeName,
		},
		Fields: map[string]string{
			"tokenValue":      "sessionId",
			"loginId":         "account",
			"loginIpAddress":  "loginIp",
			"userAgentString": "userAgent",
			"roleList":        "roles",
			"permissionList":  "permissions",
			"expiresAt":       "expireTime",
			"createdAt":       "loginTime",
		},
	}
}

// Merge returns a table holding t's entries overridden by other's. The
// resulting version is the larger of the two.
func (t AliasTable) Merge(other AliasTable) AliasTable {
	out := AliasTable{
		Version: max(t.Version, other.Version),
		Types:   maps.Clone(t.Types),
		Fields:  maps.Clone(t.Fields),
	}
	if out.Types == nil {
		out.Types = make(map[string]string, len(other.Types))
	}
	if out.Fields == nil {
		out.Fields = make(map[string]string, len(other.Fields))
	}
	maps.Copy(out.Types, other.Types)
	maps.Copy(out.Fields, other.Fields)
	return out
}

// ResolveType follows the type aliases from name, stopping at a name with no
// further mapping. ok is false when name is unknown and not TypeName itself.
func (t AliasTable) ResolveType(name string) (string, bool) {
	seen := 0
	for name != TypeName {
		next, found := t.Types[name]
		if !found || seen > len(t.Types) {
			return name, false
		}
		name = next
		seen++
	}
	return name, true
}

// renameFields rewrites aliased keys of m in place. A current key already
// present wins over its retired spelling.
func (t AliasTable) renameFields(m map[string]any) {
	for old, current := range t.Fields {
		v, ok := m[old]
		if !ok {
			continue
		}
		delete(m, old)
		if _, exists := m[current]; !exists {
			m[current] = v
		}
	}
}
