// Command hireauthd runs the session and RBAC service of the recruitment
// platform and carries its maintenance commands.
package main

import "github.com/hirelink/hireauth/cmd/hireauthd/cmd"

func main() {
	cmd.Execute()
}
