package model

// Summary is a flat, read-only digest of a design used for metrics, logs
// and the northbound API.
type Summary struct {
	Name string `json:"name"`

	Layers           int `json:"layers"`
	Nodes            int `json:"nodes"`
	Links            int `json:"links"`
	Demands          int `json:"demands"`
	Routes           int `json:"routes"`
	ForwardingRules  int `json:"forwardingRules"`
	MulticastDemands int `json:"multicastDemands"`
	MulticastTrees   int `json:"multicastTrees"`
	Resources        int `json:"resources"`
	SRGs             int `json:"srgs"`

	DownNodes int `json:"downNodes"`
	DownLinks int `json:"downLinks"`

	OfferedTraffic float64 `json:"offeredTraffic"`
	CarriedTraffic float64 `json:"carriedTraffic"`
	BlockedTraffic float64 `json:"blockedTraffic"`

	OversubscribedLinks     int `json:"oversubscribedLinks"`
	OversubscribedResources int `json:"oversubscribedResources"`
}

// Counts returns the element counts keyed by element kind, the shape the
// Prometheus gauges are labelled with.
func (s Summary) Counts() map[string]int {
	return map[string]int{
		"layer":            s.Layers,
		"node":             s.Nodes,
		"link":             s.Links,
		"demand":           s.Demands,
		"route":            s.Routes,
		"forwarding_rule":  s.ForwardingRules,
		"multicast_demand": s.MulticastDemands,
		"multicast_tree":   s.MulticastTrees,
		"resource":         s.Resources,
		"srg":              s.SRGs,
	}
}
