package speedscope

// Description of Speedscope JSON
// See spec: https://github.com/jlfwong/speedscope/blob/main/src/lib/file-format-spec.ts

const (
	schema = "https://www.speedscope.app/file-format-schema.json"

	profileEvented = "evented"
	profileSampled = "sampled"

	eventOpen  = "O"
	eventClose = "C"
)

type speedscopeFile struct {
	Schema             string    `json:"$schema"`
	Shared             shared    `json:"shared"`
	Profiles           []profile `json:"profiles"`
	Name               string    `json:"name"`
	ActiveProfileIndex int       `json:"activeProfileIndex"`
	Exporter           string    `json:"exporter"`
}

type shared struct {
	Frames []frame `json:"frames"`
}

type frame struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

type profile struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Unit       unit    `json:"unit"`
	StartValue float64 `json:"startValue"`
	EndValue   float64 `json:"endValue"`

	// Evented profile
	Events []event `json:"events"`

	// Sample profile
	Samples []sample  `json:"samples"`
	Weights []float64 `json:"weights"`
}

type event struct {
	Type  string  `json:"type"`
	At    float64 `json:"at"`
	Frame int     `json:"frame"`
}

// Indexes into Frames
type sample []int
