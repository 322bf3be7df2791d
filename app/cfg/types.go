package cfg

type Cfg struct {
	// GitHub source configuration
	GitHubOwner  string
	GitHubRepo   string
	GitHubBranch string
	GitHubPath   string
	GitHubToken  string
	GitHubAPIURL string
	GitHubTree   bool

	// Post loading configuration
	CacheTTL  int // seconds
	FastMode  bool
	FastCount int
	BatchSize int

	// Chat configuration
	ChatProvider  string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	LocalModelURL string
	LocalModel    string

	// Application configuration
	DBPath            string
	SiteConfig        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
