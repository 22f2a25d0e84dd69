package structure

// Analysis describes how a repository is organised. Every section is present
// in a valid analysis; AI-produced analyses are rejected when one is missing
// or null.
type Analysis struct {
	Directories      *Directories      `json:"directories" yaml:"directories"`
	Languages        *Languages        `json:"languages" yaml:"languages"`
	ProjectType      *ProjectType      `json:"project_type" yaml:"project_type"`
	Features         *Features         `json:"features" yaml:"features"`
	MonorepoAnalysis *MonorepoAnalysis `json:"monorepo_analysis" yaml:"monorepo_analysis"`
	BuildSystem      *BuildSystem      `json:"build_system" yaml:"build_system"`
	Deployment       *Deployment       `json:"deployment" yaml:"deployment"`
	QualityAssurance *QualityAssurance `json:"quality_assurance" yaml:"quality_assurance"`
	Insights         *Insights         `json:"insights" yaml:"insights"`
}

type Directories struct {
	MainDirectories   []string `json:"main_directories" yaml:"main_directories"`
	SourceDirectories []string `json:"source_directories" yaml:"source_directories"`
	ConfigDirectories []string `json:"config_directories" yaml:"config_directories"`
	TestDirectories   []string `json:"test_directories" yaml:"test_directories"`
	DocDirectories    []string `json:"doc_directories" yaml:"doc_directories"`
}

type Languages struct {
	PrimaryLanguage      string         `json:"primary_language" yaml:"primary_language"`
	SecondaryLanguages   []string       `json:"secondary_languages" yaml:"secondary_languages"`
	LanguageDistribution map[string]any `json:"language_distribution" yaml:"language_distribution"`
	FrameworksDetected   []string       `json:"frameworks_detected" yaml:"frameworks_detected"`
}

type ProjectType struct {
	Architecture string `json:"architecture" yaml:"architecture"`
	Complexity   string `json:"complexity" yaml:"complexity"`
	Domain       string `json:"domain" yaml:"domain"`
	Scale        string `json:"scale" yaml:"scale"`
}

type Features struct {
	HasTests         bool `json:"has_tests" yaml:"has_tests"`
	HasCICD          bool `json:"has_ci_cd" yaml:"has_ci_cd"`
	HasDocumentation bool `json:"has_documentation" yaml:"has_documentation"`
	HasDocker        bool `json:"has_docker" yaml:"has_docker"`
	HasDatabase      bool `json:"has_database" yaml:"has_database"`
	HasAPI           bool `json:"has_api" yaml:"has_api"`
	HasFrontend      bool `json:"has_frontend" yaml:"has_frontend"`
	HasBackend       bool `json:"has_backend" yaml:"has_backend"`
}

type MonorepoAnalysis struct {
	IsMonorepo         bool     `json:"is_monorepo" yaml:"is_monorepo"`
	WorkspaceTool      string   `json:"workspace_tool" yaml:"workspace_tool"`
	Packages           []string `json:"packages" yaml:"packages"`
	SharedDependencies bool     `json:"shared_dependencies" yaml:"shared_dependencies"`
}

type BuildSystem struct {
	BuildTools      []string `json:"build_tools" yaml:"build_tools"`
	PackageManagers []string `json:"package_managers" yaml:"package_managers"`
	Bundlers        []string `json:"bundlers" yaml:"bundlers"`
	TaskRunners     []string `json:"task_runners" yaml:"task_runners"`
}

type Deployment struct {
	DeploymentTargets    []string `json:"deployment_targets" yaml:"deployment_targets"`
	Containerization     string   `json:"containerization" yaml:"containerization"`
	InfrastructureAsCode string   `json:"infrastructure_as_code" yaml:"infrastructure_as_code"`
}

type QualityAssurance struct {
	Linting           []string `json:"linting" yaml:"linting"`
	Formatting        []string `json:"formatting" yaml:"formatting"`
	TestingFrameworks []string `json:"testing_frameworks" yaml:"testing_frameworks"`
	CodeCoverage      bool     `json:"code_coverage" yaml:"code_coverage"`
}

type Insights struct {
	ArchitecturalPatterns []string `json:"architectural_patterns" yaml:"architectural_patterns"`
	NotableConventions    []string `json:"notable_conventions" yaml:"notable_conventions"`
	PotentialImprovements []string `json:"potential_improvements" yaml:"potential_improvements"`
	EstimatedTeamSize     string   `json:"estimated_team_size" yaml:"estimated_team_size"`
	MaintenanceLevel      string   `json:"maintenance_level" yaml:"maintenance_level"`
	FallbackAnalysis      bool     `json:"fallback_analysis,omitempty" yaml:"fallback_analysis,omitempty"`
}
