// Package clf parses the Apache/Nginx "combined" access log format:
//
//	<remote_addr> - <remote_user> [<DD>/<Mon>/<YYYY>:<HH>:<MM>:<SS> <zone>] "<request>" <status> <body_bytes_sent> "<referer>" "<user_agent>"
//
// Apache: LogFormat "%h %l %u %t \"%r\" %>s %b \"%{Referer}i\" \"%{User-agent}i\"" combined
// Nginx:  log_format combined '$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent"';
package clf

import "regexp"

var lineRe = regexp.MustCompile(`^` +
	`(?P<remote_addr>\S+) - ` +
	`(?P<remote_user>\S+) \[` +
	`(?P<day>\d{2})/` +
	`(?P<month>\w{3})/` +
	`(?P<year>\d{4}):` +
	`(?P<hour>\d{2}):` +
	`(?P<minute>\d{2}):` +
	`(?P<second>\d{2}) ` +
	`(?P<zone>[^\]]+)\] "` +
	`(?P<request>[^"]*)" ` +
	`(?P<status>[0-9]{3}) ` +
	`(?P<body_bytes_sent>[0-9]+|-) "` +
	`(?P<http_referer>[^"]*)" "` +
	`(?P<http_user_agent>[^"]*)"` +
	`$`)

var requestRe = regexp.MustCompile(`^` +
	`(?P<method>[A-Z]+) ` +
	`(?P<path>\S+) HTTP/` +
	`(?P<version>[0-9.]+)` +
	`$`)

var (
	idxRemoteAddr    = lineRe.SubexpIndex("remote_addr")
	idxRemoteUser    = lineRe.SubexpIndex("remote_user")
	idxDay           = lineRe.SubexpIndex("day")
	idxMonth         = lineRe.SubexpIndex("month")
	idxYear          = lineRe.SubexpIndex("year")
	idxHour          = lineRe.SubexpIndex("hour")
	idxMinute        = lineRe.SubexpIndex("minute")
	idxSecond        = lineRe.SubexpIndex("second")
	idxZone          = lineRe.SubexpIndex("zone")
	idxRequest       = lineRe.SubexpIndex("request")
	idxStatus        = lineRe.SubexpIndex("status")
	idxBodyBytesSent = lineRe.SubexpIndex("body_bytes_sent")
	idxReferer       = lineRe.SubexpIndex("http_referer")
	idxUserAgent     = lineRe.SubexpIndex("http_user_agent")

	idxMethod  = requestRe.SubexpIndex("method")
	idxPath    = requestRe.SubexpIndex("path")
	idxVersion = requestRe.SubexpIndex("version")
)

// ParseLine parses one line without its trailing newline. On failure the
// returned error is always a *Error and the Record is the zero value.
func ParseLine(line string) (Record, error) {
	rec, perr := parse(line)
	if perr != nil {
		return Record{}, perr
	}
	return rec, nil
}

func parse(line string) (Record, *Error) {
	if len(line) == 0 {
		return Record{}, &Error{Kind: LineEmpty, Line: line}
	}

	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Record{}, &Error{Kind: LineRegexDoesntMatch, Line: line}
	}

	rec := Record{
		RemoteAddr:    m[idxRemoteAddr],
		RemoteUser:    m[idxRemoteUser],
		Day:           m[idxDay],
		Month:         m[idxMonth],
		Year:          m[idxYear],
		Hour:          m[idxHour],
		Minute:        m[idxMinute],
		Second:        m[idxSecond],
		Zone:          m[idxZone],
		Request:       m[idxRequest],
		Status:        m[idxStatus],
		BodyBytesSent: m[idxBodyBytesSent],
		HTTPReferer:   m[idxReferer],
		HTTPUserAgent: m[idxUserAgent],
	}

	if rec.Request != "" {
		rm := requestRe.FindStringSubmatch(rec.Request)
		if rm == nil {
			return Record{}, &Error{Kind: RequestRegexDoesntMatch, Line: line}
		}
		rec.RequestLine = &RequestLine{
			Method:      rm[idxMethod],
			Path:        rm[idxPath],
			HTTPVersion: rm[idxVersion],
		}
	}
	return rec, nil
}
