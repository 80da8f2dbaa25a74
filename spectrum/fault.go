package spectrum

// Component names a bearing fault component.
type Component string

// Fault components, in their fixed enumeration order.
const (
	FTF  Component = "FTF"  // cage
	BSF  Component = "BSF"  // ball spin
	BPFO Component = "BPFO" // outer race
	BPFI Component = "BPFI" // inner race
)

// Components returns every fault component in enumeration order. Detection
// and aggregation both walk components in this order.
func Components() []Component {
	return []Component{FTF, BSF, BPFO, BPFI}
}

// FaultFrequencies holds the characteristic fault frequencies (Hz) of a
// bearing under one operating condition.
type FaultFrequencies struct {
	FTF  float64 `yaml:"ftf" json:"FTF"`
	BSF  float64 `yaml:"bsf" json:"BSF"`
	BPFO float64 `yaml:"bpfo" json:"BPFO"`
	BPFI float64 `yaml:"bpfi" json:"BPFI"`
}

// Base returns the base frequency of c, or 0 for an unknown component.
func (f FaultFrequencies) Base(c Component) float64 {
	switch c {
	case FTF:
		return f.FTF
	case BSF:
		return f.BSF
	case BPFO:
		return f.BPFO
	case BPFI:
		return f.BPFI
	}
	return 0
}
