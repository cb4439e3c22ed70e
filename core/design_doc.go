package core

// Version 2 design document. Elements are listed in index order with their
// ids; every cross reference is an id.

const (
	documentFormat  = "netdesign"
	documentVersion = 2
)

type documentHeader struct {
	Format  string `json:"format" yaml:"format"`
	Version int    `json:"version" yaml:"version"`
}

type designDoc struct {
	Format       string            `json:"format" yaml:"format" validate:"required,eq=netdesign"`
	Version      int               `json:"version" yaml:"version" validate:"eq=2"`
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" validate:"dive,keys,required,endkeys"`
	Options      optionsDoc        `json:"options" yaml:"options"`
	NextID       int64             `json:"nextId" yaml:"nextId" validate:"min=0"`
	DefaultLayer int64             `json:"defaultLayer" yaml:"defaultLayer" validate:"min=0"`
	Layers       []layerDoc        `json:"layers" yaml:"layers" validate:"required,min=1,dive"`
	Nodes        []nodeDoc         `json:"nodes,omitempty" yaml:"nodes,omitempty" validate:"dive"`
	Resources    []resourceDoc     `json:"resources,omitempty" yaml:"resources,omitempty" validate:"dive"`
	SRGs         []srgDoc          `json:"srgs,omitempty" yaml:"srgs,omitempty" validate:"dive"`
}

type optionsDoc struct {
	Epsilon       float64 `json:"epsilon" yaml:"epsilon" validate:"gt=0"`
	CyclePolicy   string  `json:"cyclePolicy" yaml:"cyclePolicy" validate:"omitempty,oneof=reject iterate"`
	MaxIterations int     `json:"maxIterations" yaml:"maxIterations" validate:"gt=0"`
}

type layerDoc struct {
	ID               int64             `json:"id" yaml:"id" validate:"min=0"`
	Name             string            `json:"name" yaml:"name"`
	Description      string            `json:"description,omitempty" yaml:"description,omitempty"`
	DemandUnits      string            `json:"demandUnits,omitempty" yaml:"demandUnits,omitempty"`
	CapacityUnits    string            `json:"capacityUnits,omitempty" yaml:"capacityUnits,omitempty"`
	RoutingType      string            `json:"routingType" yaml:"routingType" validate:"oneof=SOURCE_ROUTING HOP_BY_HOP_ROUTING"`
	Attributes       map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Links            []linkDoc         `json:"links,omitempty" yaml:"links,omitempty" validate:"dive"`
	Demands          []demandDoc       `json:"demands,omitempty" yaml:"demands,omitempty" validate:"dive"`
	Routes           []routeDoc        `json:"routes,omitempty" yaml:"routes,omitempty" validate:"dive"`
	ForwardingRules  []ruleDoc         `json:"forwardingRules,omitempty" yaml:"forwardingRules,omitempty" validate:"dive"`
	MulticastDemands []mdemandDoc      `json:"multicastDemands,omitempty" yaml:"multicastDemands,omitempty" validate:"dive"`
	MulticastTrees   []treeDoc         `json:"multicastTrees,omitempty" yaml:"multicastTrees,omitempty" validate:"dive"`
}

type pointDoc struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type nodeDoc struct {
	ID         int64               `json:"id" yaml:"id" validate:"min=0"`
	Name       string              `json:"name" yaml:"name"`
	Positions  map[string]pointDoc `json:"positions,omitempty" yaml:"positions,omitempty"`
	Up         bool                `json:"up" yaml:"up"`
	Attributes map[string]string   `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type linkDoc struct {
	ID               int64             `json:"id" yaml:"id" validate:"min=0"`
	Origin           int64             `json:"origin" yaml:"origin" validate:"min=0"`
	Destination      int64             `json:"destination" yaml:"destination" validate:"min=0,nefield=Origin"`
	Capacity         float64           `json:"capacity" yaml:"capacity" validate:"gte=0"`
	LengthKm         float64           `json:"lengthKm" yaml:"lengthKm" validate:"gte=0"`
	PropagationSpeed float64           `json:"propagationSpeedKmPerSec" yaml:"propagationSpeedKmPerSec" validate:"gt=0"`
	Up               bool              `json:"up" yaml:"up"`
	Attributes       map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type demandDoc struct {
	ID           int64             `json:"id" yaml:"id" validate:"min=0"`
	Ingress      int64             `json:"ingress" yaml:"ingress" validate:"min=0"`
	Egress       int64             `json:"egress" yaml:"egress" validate:"min=0,nefield=Ingress"`
	Offered      float64           `json:"offeredTraffic" yaml:"offeredTraffic" validate:"gte=0"`
	ServiceChain []string          `json:"serviceChain,omitempty" yaml:"serviceChain,omitempty" validate:"dive,required"`
	MaxLatencyMs float64           `json:"maxLatencyMs,omitempty" yaml:"maxLatencyMs,omitempty" validate:"gte=0"`
	CoupledLink  *int64            `json:"coupledLink,omitempty" yaml:"coupledLink,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type hopDoc struct {
	Resource   bool    `json:"resource,omitempty" yaml:"resource,omitempty"`
	ID         int64   `json:"id" yaml:"id" validate:"min=0"`
	Occupation float64 `json:"occupation" yaml:"occupation" validate:"gte=0"`
}

type routeDoc struct {
	ID             int64             `json:"id" yaml:"id" validate:"min=0"`
	Demand         int64             `json:"demand" yaml:"demand" validate:"min=0"`
	Carried        float64           `json:"carriedTraffic" yaml:"carriedTraffic" validate:"gte=0"`
	Path           []hopDoc          `json:"path" yaml:"path" validate:"required,min=1,dive"`
	InitialCarried float64           `json:"initialCarriedTraffic" yaml:"initialCarriedTraffic" validate:"gte=0"`
	InitialPath    []hopDoc          `json:"initialPath" yaml:"initialPath" validate:"required,min=1,dive"`
	Backups        []int64           `json:"backups,omitempty" yaml:"backups,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type ruleDoc struct {
	Demand   int64   `json:"demand" yaml:"demand" validate:"min=0"`
	Link     int64   `json:"link" yaml:"link" validate:"min=0"`
	Fraction float64 `json:"fraction" yaml:"fraction" validate:"gt=0"`
}

type mdemandDoc struct {
	ID           int64             `json:"id" yaml:"id" validate:"min=0"`
	Ingress      int64             `json:"ingress" yaml:"ingress" validate:"min=0"`
	Egress       []int64           `json:"egress" yaml:"egress" validate:"required,min=1"`
	Offered      float64           `json:"offeredTraffic" yaml:"offeredTraffic" validate:"gte=0"`
	CoupledLinks []int64           `json:"coupledLinks,omitempty" yaml:"coupledLinks,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type treeDoc struct {
	ID           int64             `json:"id" yaml:"id" validate:"min=0"`
	Demand       int64             `json:"multicastDemand" yaml:"multicastDemand" validate:"min=0"`
	Carried      float64           `json:"carriedTraffic" yaml:"carriedTraffic" validate:"gte=0"`
	Occupied     float64           `json:"occupiedLinkCapacity" yaml:"occupiedLinkCapacity" validate:"gte=0"`
	Links        []int64           `json:"links" yaml:"links" validate:"required,min=1"`
	InitialLinks []int64           `json:"initialLinks" yaml:"initialLinks" validate:"required,min=1"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type baseDoc struct {
	Resource   int64   `json:"resource" yaml:"resource" validate:"min=0"`
	Occupation float64 `json:"occupation" yaml:"occupation" validate:"gte=0"`
}

type resourceDoc struct {
	ID               int64             `json:"id" yaml:"id" validate:"min=0"`
	Type             string            `json:"type" yaml:"type" validate:"required"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	Host             int64             `json:"host" yaml:"host" validate:"min=0"`
	Capacity         float64           `json:"capacity" yaml:"capacity" validate:"gte=0"`
	Units            string            `json:"capacityUnits,omitempty" yaml:"capacityUnits,omitempty"`
	ProcessingTimeMs float64           `json:"processingTimeMs,omitempty" yaml:"processingTimeMs,omitempty" validate:"gte=0"`
	Bases            []baseDoc         `json:"bases,omitempty" yaml:"bases,omitempty" validate:"dive"`
	Attributes       map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type srgDoc struct {
	ID         int64             `json:"id" yaml:"id" validate:"min=0"`
	MTTFHours  float64           `json:"mttfHours" yaml:"mttfHours" validate:"gte=0"`
	MTTRHours  float64           `json:"mttrHours" yaml:"mttrHours" validate:"gte=0"`
	Nodes      []int64           `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Links      []int64           `json:"links,omitempty" yaml:"links,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Version 1 documents describe a single source-routed layer without
// resources, multicast or couplings.
type designDocV1 struct {
	Format  string     `json:"format" yaml:"format" validate:"required,eq=netdesign"`
	Version int        `json:"version" yaml:"version" validate:"eq=1"`
	Name    string     `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes   []nodeV1   `json:"nodes" yaml:"nodes" validate:"dive"`
	Links   []linkV1   `json:"links" yaml:"links" validate:"dive"`
	Demands []demandV1 `json:"demands" yaml:"demands" validate:"dive"`
	Routes  []routeV1  `json:"routes" yaml:"routes" validate:"dive"`
	SRGs    []srgDoc   `json:"srgs,omitempty" yaml:"srgs,omitempty" validate:"dive"`
}

type nodeV1 struct {
	ID   int64   `json:"id" yaml:"id" validate:"min=0"`
	Name string  `json:"name" yaml:"name"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Down bool    `json:"down,omitempty" yaml:"down,omitempty"`
}

type linkV1 struct {
	ID          int64   `json:"id" yaml:"id" validate:"min=0"`
	Origin      int64   `json:"origin" yaml:"origin" validate:"min=0"`
	Destination int64   `json:"destination" yaml:"destination" validate:"min=0,nefield=Origin"`
	Capacity    float64 `json:"capacity" yaml:"capacity" validate:"gte=0"`
	LengthKm    float64 `json:"lengthKm" yaml:"lengthKm" validate:"gte=0"`
	Down        bool    `json:"down,omitempty" yaml:"down,omitempty"`
}

type demandV1 struct {
	ID      int64   `json:"id" yaml:"id" validate:"min=0"`
	Ingress int64   `json:"ingress" yaml:"ingress" validate:"min=0"`
	Egress  int64   `json:"egress" yaml:"egress" validate:"min=0,nefield=Ingress"`
	Offered float64 `json:"offeredTraffic" yaml:"offeredTraffic" validate:"gte=0"`
}

type routeV1 struct {
	ID       int64   `json:"id" yaml:"id" validate:"min=0"`
	Demand   int64   `json:"demand" yaml:"demand" validate:"min=0"`
	Carried  float64 `json:"carriedTraffic" yaml:"carriedTraffic" validate:"gte=0"`
	Occupied float64 `json:"occupiedCapacity" yaml:"occupiedCapacity" validate:"gte=0"`
	Links    []int64 `json:"links" yaml:"links" validate:"required,min=1"`
}
