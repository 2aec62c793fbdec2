package ingest

import (
	"fmt"
	"strings"
)

// SplitRefDes breaks a reference designator into its site, node, and
// sensor parts. The sensor part may itself contain a dash
// ("GI01SUMO-RII11-02-CTDBPP031" → sensor "02-CTDBPP031").
func SplitRefDes(refdes string) (site, node, sensor string, err error) {
	parts := strings.SplitN(refdes, "-", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid reference designator %q", refdes)
	}
	return parts[0], parts[1], parts[2], nil
}

// JoinRefDes assembles a reference designator from its parts.
func JoinRefDes(site, node, sensor string) string {
	return strings.Join([]string{site, node, sensor}, "-")
}
