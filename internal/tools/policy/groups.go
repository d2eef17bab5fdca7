package policy

// ExpandGroups expands group references in a tool list against a
// caller-supplied group table, passing direct tool names through
// unchanged and deduplicating the result. Resolver.ExpandGroups is the
// version consulted during authorization (it also expands mcp:<server>.*
// wildcards); this package-level form is for callers building a group
// table outside of a Resolver, e.g. in a config-loading test.
func ExpandGroups(groups map[string][]string, items []string) []string {
	var result []string
	seen := make(map[string]bool)

	for _, item := range items {
		if tools, ok := groups[item]; ok {
			for _, tool := range tools {
				if !seen[tool] {
					seen[tool] = true
					result = append(result, tool)
				}
			}
			continue
		}
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
