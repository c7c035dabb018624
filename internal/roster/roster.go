// Package roster holds the default team and agent definitions HIVEMIND
// boots with when no external agent configuration is supplied.
package roster

// TeamConfig is the static definition of one of the four fixed teams.
type TeamConfig struct {
	ID          string
	Name        string
	Description string
	Keywords    []string
	Color       string
}

// AgentDef is the static definition of one agent, as loaded at pool init.
type AgentDef struct {
	ID           string
	Name         string
	Team         string
	Description  string
	Capabilities []string
	Keywords     []string
	SystemPrompt string
}

// Teams is the fixed team table: DEV, SEC, INF, QA.
var Teams = []TeamConfig{
	{
		ID:          "DEV",
		Name:        "Development",
		Description: "Software development, architecture, and code quality",
		Keywords: []string{
			"code", "implement", "build", "create", "function", "api",
			"develop", "program", "write", "fix", "bug", "feature",
			"refactor", "optimize", "class", "method", "module",
			"library", "framework", "design", "architecture",
		},
		Color: "#39ff14",
	},
	{
		ID:          "SEC",
		Name:        "Security",
		Description: "Security assessment, vulnerability analysis, and incident response",
		Keywords: []string{
			"security", "vulnerability", "audit", "pentest", "encrypt",
			"auth", "authentication", "authorization", "exploit",
			"malware", "threat", "attack", "defense", "firewall",
			"intrusion", "forensic", "compliance", "risk", "breach",
		},
		Color: "#ff0090",
	},
	{
		ID:          "INF",
		Name:        "Infrastructure",
		Description: "Cloud infrastructure, deployment, and operations",
		Keywords: []string{
			"deploy", "scale", "kubernetes", "docker", "server", "cloud",
			"aws", "azure", "gcp", "infrastructure", "network", "database",
			"monitoring", "logging", "terraform", "ansible", "ci/cd",
			"pipeline", "container", "cluster", "load", "balance",
		},
		Color: "#00ffff",
	},
	{
		ID:          "QA",
		Name:        "Quality Assurance",
		Description: "Testing, quality control, and performance validation",
		Keywords: []string{
			"test", "quality", "bug", "regression", "performance",
			"automation", "selenium", "cypress", "jest", "pytest",
			"coverage", "integration", "unit", "e2e", "acceptance",
			"benchmark", "load", "stress", "validate", "verify",
		},
		Color: "#9900ff",
	},
}

// DefaultAgents is the 24-agent roster (6 per team) HIVEMIND uses when no
// agents config file is supplied.
var DefaultAgents = []AgentDef{
	{ID: "DEV-001", Name: "Architect", Team: "DEV", Description: "System design and architecture decisions",
		Capabilities: []string{"architecture"},
		Keywords:     []string{"architecture", "design", "system", "pattern", "structure", "diagram"}},
	{ID: "DEV-002", Name: "Backend Developer", Team: "DEV", Description: "Server-side code, APIs, and databases",
		Capabilities: []string{"backend"},
		Keywords:     []string{"backend", "api", "server", "database", "endpoint", "rest", "graphql"}},
	{ID: "DEV-003", Name: "Frontend Developer", Team: "DEV", Description: "UI/UX and client-side applications",
		Capabilities: []string{"frontend"},
		Keywords:     []string{"frontend", "ui", "ux", "react", "vue", "angular", "css", "html", "javascript"}},
	{ID: "DEV-004", Name: "Code Reviewer", Team: "DEV", Description: "Code quality and design patterns",
		Capabilities: []string{"code_review"},
		Keywords:     []string{"review", "quality", "refactor", "pattern", "clean", "style", "lint"}},
	{ID: "DEV-005", Name: "Technical Writer", Team: "DEV", Description: "Documentation and API guides",
		Capabilities: []string{"documentation"},
		Keywords:     []string{"document", "readme", "guide", "api", "docs", "comment", "explain"}},
	{ID: "DEV-006", Name: "DevOps Liaison", Team: "DEV", Description: "CI/CD and deployment pipelines",
		Capabilities: []string{"devops"},
		Keywords:     []string{"cicd", "pipeline", "deploy", "build", "release", "github", "gitlab"}},

	{ID: "SEC-001", Name: "Security Architect", Team: "SEC", Description: "Threat modeling and secure design",
		Capabilities: []string{"security_architecture"},
		Keywords:     []string{"threat", "model", "secure", "design", "risk", "framework"}},
	{ID: "SEC-002", Name: "Penetration Tester", Team: "SEC", Description: "Offensive security and vulnerability testing",
		Capabilities: []string{"penetration_testing"},
		Keywords:     []string{"pentest", "exploit", "vulnerability", "attack", "hack", "ctf"}},
	{ID: "SEC-003", Name: "Malware Analyst", Team: "SEC", Description: "Reverse engineering and threat analysis",
		Capabilities: []string{"malware_analysis"},
		Keywords:     []string{"malware", "reverse", "binary", "analysis", "threat", "ioc"}},
	{ID: "SEC-004", Name: "Wireless Security Expert", Team: "SEC", Description: "WiFi, Bluetooth, and RF security",
		Capabilities: []string{"wireless_security"},
		Keywords:     []string{"wireless", "wifi", "bluetooth", "rf", "radio", "signal"}},
	{ID: "SEC-005", Name: "Compliance Auditor", Team: "SEC", Description: "Regulatory compliance (SOC2, GDPR, PCI)",
		Capabilities: []string{"compliance"},
		Keywords:     []string{"compliance", "audit", "soc2", "gdpr", "pci", "hipaa", "policy"}},
	{ID: "SEC-006", Name: "Incident Responder", Team: "SEC", Description: "Forensics and incident management",
		Capabilities: []string{"incident_response"},
		Keywords:     []string{"incident", "forensic", "response", "breach", "investigate"}},

	{ID: "INF-001", Name: "Infrastructure Architect", Team: "INF", Description: "Cloud architecture and design",
		Capabilities: []string{"cloud_architecture"},
		Keywords:     []string{"cloud", "aws", "azure", "gcp", "architecture", "infrastructure"}},
	{ID: "INF-002", Name: "Systems Administrator", Team: "INF", Description: "Server management and configuration",
		Capabilities: []string{"systems_admin"},
		Keywords:     []string{"linux", "windows", "server", "admin", "configure", "manage"}},
	{ID: "INF-003", Name: "Network Engineer", Team: "INF", Description: "Networking and connectivity",
		Capabilities: []string{"networking"},
		Keywords:     []string{"network", "firewall", "vpc", "dns", "routing", "load"}},
	{ID: "INF-004", Name: "Database Administrator", Team: "INF", Description: "Database optimization and backup",
		Capabilities: []string{"database"},
		Keywords:     []string{"database", "sql", "postgres", "mysql", "mongo", "redis", "backup"}},
	{ID: "INF-005", Name: "Site Reliability Engineer", Team: "INF", Description: "Monitoring, observability, and SLOs",
		Capabilities: []string{"sre"},
		Keywords:     []string{"monitoring", "alert", "slo", "sli", "observability", "prometheus"}},
	{ID: "INF-006", Name: "Automation Engineer", Team: "INF", Description: "Terraform, Ansible, and Infrastructure as Code",
		Capabilities: []string{"automation"},
		Keywords:     []string{"terraform", "ansible", "iac", "automation", "script", "provision"}},

	{ID: "QA-001", Name: "QA Architect", Team: "QA", Description: "Test strategy and quality processes",
		Capabilities: []string{"test_strategy"},
		Keywords:     []string{"strategy", "quality", "process", "framework", "methodology"}},
	{ID: "QA-002", Name: "Test Automation Engineer", Team: "QA", Description: "Automated testing and frameworks",
		Capabilities: []string{"test_automation"},
		Keywords:     []string{"automation", "selenium", "cypress", "playwright", "framework"}},
	{ID: "QA-003", Name: "Performance Tester", Team: "QA", Description: "Load testing and performance analysis",
		Capabilities: []string{"performance_testing"},
		Keywords:     []string{"performance", "load", "stress", "benchmark", "jmeter", "k6"}},
	{ID: "QA-004", Name: "Security Tester", Team: "QA", Description: "SAST/DAST and vulnerability scanning",
		Capabilities: []string{"security_testing"},
		Keywords:     []string{"sast", "dast", "scan", "security", "vulnerability", "owasp"}},
	{ID: "QA-005", Name: "Manual QA Tester", Team: "QA", Description: "Exploratory testing and UAT",
		Capabilities: []string{"manual_testing"},
		Keywords:     []string{"manual", "exploratory", "uat", "acceptance", "usability"}},
	{ID: "QA-006", Name: "Test Data Manager", Team: "QA", Description: "Test data and fixtures",
		Capabilities: []string{"test_data"},
		Keywords:     []string{"data", "fixture", "mock", "seed", "generate", "synthetic"}},
}
