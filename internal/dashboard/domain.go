package dashboard

import (
	"github.com/cooarq/cooarq-portal/internal/i18n"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// Tile is the static presentation of a module card.
type Tile struct {
	Module rbac.Module
	Icon   string
	Accent string
}

var tiles = map[rbac.Module]Tile{
	rbac.ModuleMarketing: {Module: rbac.ModuleMarketing, Icon: "trending-up", Accent: "pink"},
	rbac.ModuleCRM:       {Module: rbac.ModuleCRM, Icon: "users", Accent: "blue"},
	rbac.ModuleFinancial: {Module: rbac.ModuleFinancial, Icon: "dollar-sign", Accent: "green"},
	rbac.ModuleRender:    {Module: rbac.ModuleRender, Icon: "monitor", Accent: "purple"},
	rbac.ModuleProcesses: {Module: rbac.ModuleProcesses, Icon: "file-text", Accent: "orange"},
	rbac.ModuleUsers:     {Module: rbac.ModuleUsers, Icon: "user-check", Accent: "indigo"},
}

// Card is a module card as rendered for one principal.
type Card struct {
	Tile
	Title       string
	Description string
	// Allowed is the module read permission. Cards without it are shown
	// disabled, never hidden.
	Allowed bool
}

// CardFor builds the card of a single module.
func CardFor(loc *i18n.Localizer, profile *rbac.Profile, grants []rbac.Grant, module rbac.Module) Card {
	tile, ok := tiles[module]
	if !ok {
		tile = Tile{Module: module, Icon: "grid", Accent: "blue"}
	}
	return Card{
		Tile:        tile,
		Title:       loc.T("module." + string(module) + ".title"),
		Description: loc.T("module." + string(module) + ".description"),
		Allowed:     rbac.HasPermission(profile, grants, module, rbac.ActionRead),
	}
}

// Cards builds one card per module in display order.
func Cards(loc *i18n.Localizer, profile *rbac.Profile, grants []rbac.Grant) []Card {
	modules := rbac.Modules()
	cards := make([]Card, 0, len(modules))
	for _, m := range modules {
		cards = append(cards, CardFor(loc, profile, grants, m))
	}
	return cards
}
