package model

// Project owns builds and declares the default branch and per-environment branches.
type Project struct {
	ID     int64
	Title  string
	Branch string

	// EnvironmentBranches maps an environment name to the branches deployed to it.
	EnvironmentBranches map[string][]string
}

// BranchesByEnvironment returns the branches configured for environment, or
// an empty list when the environment is blank or unknown.
func (p *Project) BranchesByEnvironment(environment string) []string {
	branches := p.EnvironmentBranches[environment]
	out := make([]string, len(branches))
	copy(out, branches)
	return out
}
