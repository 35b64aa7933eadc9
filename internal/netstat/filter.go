package netstat

import "strings"

// ignorePrefixes lists interface name prefixes excluded when the user
// has made no explicit selection: AirDrop (awdl), low-latency wireless
// (llw), VPN tunnels (utun), bridges, access-point/hotspot (ap) and
// peer-to-peer (p2p) adapters either double-count traffic or are not
// real egress paths.
var ignorePrefixes = []string{"awdl", "llw", "utun", "bridge", "ap", "p2p"}

// Filter narrows a snapshot to the interfaces the user selected.
// With a non-empty selection only members are kept; otherwise the
// default ignore-prefix list applies. Pure function of its inputs.
func Filter(samples []RawSample, selection map[string]struct{}) []RawSample {
	filtered := make([]RawSample, 0, len(samples))
	for _, sample := range samples {
		if len(selection) > 0 {
			if _, ok := selection[sample.Name]; ok {
				filtered = append(filtered, sample)
			}
			continue
		}
		if !hasIgnoredPrefix(sample.Name) {
			filtered = append(filtered, sample)
		}
	}
	return filtered
}

func hasIgnoredPrefix(name string) bool {
	for _, prefix := range ignorePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
