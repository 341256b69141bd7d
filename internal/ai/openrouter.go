package ai

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

func createOpenRouterFactory(args interface{}) (IProvider, error) {
	p, err := newOpenAICompatible("openrouter", defaultOpenRouterBaseURL, args)
	if err != nil {
		return nil, err
	}
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	p.headers = map[string]string{
		"HTTP-Referer": cfg.HTTPReferer,
		"X-Title":      cfg.XTitle,
	}
	return p, nil
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
