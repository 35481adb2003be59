package clf

// Record is one parsed combined-format line. Every field keeps the raw
// substring from the line; callers decide how to type them.
type Record struct {
	RemoteAddr string `json:"remote_addr"`
	RemoteUser string `json:"remote_user"`

	Day    string `json:"time_local_day"`
	Month  string `json:"time_local_month"`
	Year   string `json:"time_local_year"`
	Hour   string `json:"time_local_hour"`
	Minute string `json:"time_local_minute"`
	Second string `json:"time_local_second"`
	Zone   string `json:"time_local_zone"`

	Request string `json:"request"`
	// Nil when Request is empty. Access its fields through the pointer,
	// not the promoted names, unless HasRequestLine reports true.
	*RequestLine

	Status        string `json:"status"`
	BodyBytesSent string `json:"body_bytes_sent"`
	HTTPReferer   string `json:"http_referer"`
	HTTPUserAgent string `json:"http_user_agent"`
}

// RequestLine holds the parts of a non-empty request string.
type RequestLine struct {
	Method      string `json:"request_method"`
	Path        string `json:"request_path"`
	HTTPVersion string `json:"request_http_version"`
}

// HasRequestLine reports whether the request sub-fields were parsed.
func (r Record) HasRequestLine() bool {
	return r.RequestLine != nil
}

// TimeLocal reassembles the timestamp parts in the nginx $time_local layout.
func (r Record) TimeLocal() string {
	return r.Day + "/" + r.Month + "/" + r.Year + ":" + r.Hour + ":" + r.Minute + ":" + r.Second + " " + r.Zone
}
