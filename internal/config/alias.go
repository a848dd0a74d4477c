package config

import "sort"

var roleOrder = map[string]int{"psi": 0, "sigma": 1, "phi": 2}

func sortAliases(as []Alias) {
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].Role != as[j].Role {
			return roleOrder[as[i].Role] < roleOrder[as[j].Role]
		}
		return as[i].Name < as[j].Name
	})
}
