package model

type Metadata struct {
	InputName       string    `json:"input_name"`
	InputShape      []int64   `json:"input_shape"`
	MainOutput      string    `json:"main_output"`
	SeverityOutput  string    `json:"severity_output"`
	MainClasses     []string  `json:"main_classes"`
	SeverityClasses []string  `json:"severity_classes"`
	ImageSize       int       `json:"image_size"`
	Layout          string    `json:"layout"`
	ChannelOrder    string    `json:"channel_order"`
	Mean            []float32 `json:"mean"`
	Std             []float32 `json:"std"`
}

// Scores holds the raw output of both classification heads.
type Scores struct {
	Main     []float32 `json:"main"`
	Severity []float32 `json:"severity"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}
