package classifier

// Mode selects how a classifier participates in a pipeline.
type Mode string

const (
	// ModeTrain allows refitting the classifier.
	ModeTrain Mode = "train"
	// ModeInfer marks the classifier read-only for serving.
	ModeInfer Mode = "infer"
)

// Config carries the persistence settings every classifier is built with.
// LoadPath names an artifact restored at construction time; SavePath is
// the default destination of Save. An empty Mode behaves like ModeTrain.
type Config struct {
	SavePath string `yaml:"save_path"`
	LoadPath string `yaml:"load_path"`
	Mode     Mode   `yaml:"mode"`
}

// Trainable reports whether fitting is allowed under this config.
func (c Config) Trainable() bool {
	return c.Mode == "" || c.Mode == ModeTrain
}
