package dto

type ServiceCatalogResponse struct {
	Tier1 []string            `json:"tier1"`
	Tier2 map[string][]string `json:"tier2"`
	Tier3 []string            `json:"tier3"`
	// Tier3For lists the tier1 options that take a third tier.
	Tier3For []string `json:"tier3_for"`
}
