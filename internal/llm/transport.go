package llm

import (
	"net/http"
	"net/url"
)

// newProxyFunc picks the configured proxy by scheme,
// falling back to HTTP_PROXY/HTTPS_PROXY/NO_PROXY from the environment.
func newProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// newTransport clones the default transport with proxy settings applied
func newTransport(httpProxy, httpsProxy string) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = newProxyFunc(httpProxy, httpsProxy)
	return transport
}
