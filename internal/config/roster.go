package config

// RosterConfig points at optional bulk roster files. Empty paths disable
// the corresponding sync.
type RosterConfig struct {
	InstructorFile string `yaml:"instructor_file,omitempty"`
	StudentFile    string `yaml:"student_file,omitempty"`
}
