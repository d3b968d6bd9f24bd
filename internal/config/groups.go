package config

import (
	"net/url"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

// BuildGroups turns the config's declarative group/endpoint definitions into
// domain.Group values, assigning each endpoint a stable DefinitionOrder for
// the selection policy's tie-break rule.
func BuildGroups(cfg *Config, credentials map[string]string) ([]*domain.Group, error) {
	groups := make([]*domain.Group, 0, len(cfg.Groups))
	order := 0

	for _, gc := range cfg.Groups {
		group := &domain.Group{
			Name:         gc.Name,
			AuthTokenEnv: gc.AuthTokenEnv,
			Credential:   credentials[gc.Name],
			Default:      gc.Default,
		}

		for _, ed := range gc.Endpoints {
			parsed, err := url.Parse(ed.URL)
			if err != nil {
				return nil, domain.NewConfigError("groups[].endpoints[].url", ed.URL, err.Error())
			}
			name := ed.Name
			if name == "" {
				name = parsed.Host
			}
			group.Endpoints = append(group.Endpoints, &domain.Endpoint{
				Name:            name,
				URL:             parsed,
				GroupName:       gc.Name,
				DefinitionOrder: order,
			})
			order++
		}

		groups = append(groups, group)
	}

	return groups, nil
}

// DefaultGroupName returns the name of the group flagged default.
func DefaultGroupName(groups []*domain.Group) string {
	for _, g := range groups {
		if g.Default {
			return g.Name
		}
	}
	if len(groups) > 0 {
		return groups[0].Name
	}
	return ""
}
