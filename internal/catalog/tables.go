package catalog

// Builtin data. The catalog is assembled from these tables once and never
// mutated afterwards; overlays are merged into copies before freezing.

// wellKnownPorts maps common TCP ports to canonical service names.
var wellKnownPorts = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	143:   "imap",
	443:   "https",
	445:   "smb",
	1433:  "mssql",
	1521:  "oracle",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-proxy",
	8443:  "https-alt",
	27017: "mongodb",
}

// signatureOrder fixes the iteration order for passive banner matching.
// Services whose markers are specific come before services with generic
// numeric markers, so an "ESMTP" greeting resolves to smtp rather than to
// ftp's bare "220".
var signatureOrder = []string{
	"ssh",
	"http",
	"https",
	"smtp",
	"ftp",
	"pop3",
	"imap",
	"telnet",
	"mysql",
	"postgresql",
	"redis",
	"mongodb",
	"vnc",
	"rdp",
	"dns",
	"smb",
	"ldap",
	"ntp",
	"snmp",
}

// serviceSignatures holds case-insensitive substring markers per service,
// used both to recognize a passive banner and to validate probe responses.
var serviceSignatures = map[string][]string{
	"http":       {"HTTP", "<html", "<!DOCTYPE"},
	"https":      {"HTTP", "<html", "<!DOCTYPE"},
	"ssh":        {"SSH", "OpenSSH"},
	"ftp":        {"220", "FTP", "FileZilla"},
	"smtp":       {"SMTP", "ESMTP"},
	"pop3":       {"+OK", "POP3"},
	"imap":       {"* OK", "IMAP"},
	"telnet":     {"Telnet", "login:", "Username:"},
	"mysql":      {"mysql_native_password", "MariaDB"},
	"rdp":        {"RDP", "RFB"},
	"vnc":        {"RFB", "VNC"},
	"dns":        {"DNS"},
	"smb":        {"SMB", "Samba"},
	"ldap":       {"LDAP"},
	"ntp":        {"NTP"},
	"snmp":       {"SNMP"},
	"redis":      {"REDIS", "+PONG"},
	"mongodb":    {"MongoDB"},
	"postgresql": {"PostgreSQL"},
}

// probeOrder fixes the candidate sequence for the active probe stage. Each
// candidate costs one fresh connection, so cheap high-yield protocols lead.
var probeOrder = []string{
	"http",
	"https",
	"ssh",
	"smtp",
	"ftp",
	"pop3",
	"imap",
	"telnet",
	"mysql",
	"redis",
	"mongodb",
	"postgresql",
}

// serviceProbes maps a service to the payload that should elicit a
// recognizable response. An empty payload means connect-only: the protocol
// greets first (FTP, POP3, Telnet).
var serviceProbes = map[string][]byte{
	"http":   []byte("GET / HTTP/1.0\r\n\r\n"),
	"https":  []byte("GET / HTTP/1.0\r\n\r\n"),
	"ssh":    []byte("SSH-2.0-OpenSSH_Client\r\n"),
	"ftp":    {},
	"smtp":   []byte("EHLO test.com\r\n"),
	"pop3":   {},
	"imap":   []byte("A001 CAPABILITY\r\n"),
	"telnet": {},
	"mysql": []byte("\x03\x00\x00\x00\x0b\x00\x00\x00" +
		"\x00\x01\x00\x00\x00"),
	"redis": []byte("PING\r\n"),
	"mongodb": []byte("\x3a\x00\x00\x00\x00\x00\x00\x00" +
		"\x00\x00\x00\x00\xd4\x07\x00\x00" +
		"\x00\x00\x00\x00admin.$cmd\x00" +
		"\x00\x00\x00\x00\xff\xff\xff\xff" +
		"\x1b\x00\x00\x00\x01ping\x00" +
		"\x00\x00\x00\x00\x00\x00\x00\x00" +
		"\x00\x00\x00\x00\x00\x00\x00\x00" +
		"\x00\x00\x00"),
	"postgresql": []byte("\x00\x00\x00\x08\x04\xd2\x16\x2f"),
}

// bannerNudges are small payloads sent during the passive stage on ports
// where servers only answer after client input.
var bannerNudges = map[int][]byte{
	80:   []byte("GET / HTTP/1.0\r\n\r\n"),
	443:  []byte("GET / HTTP/1.0\r\n\r\n"),
	8080: []byte("GET / HTTP/1.0\r\n\r\n"),
	8443: []byte("GET / HTTP/1.0\r\n\r\n"),
	25:   []byte("EHLO test.com\r\n"),
	587:  []byte("EHLO test.com\r\n"),
	110:  []byte("USER test\r\n"),
}

// versionExpressions are tried in order against decoded banner text; the
// first expression with a match supplies the version (capture group one).
var versionExpressions = []string{
	`(?i)Server: ([^\r\n]+)`,
	`(?i)Version: ([^\r\n]+)`,
	`(?i)OpenSSH_([^\s]+)`,
	`(?i)Apache/([^\s]+)`,
	`(?i)nginx/([^\s]+)`,
	`(?i)Microsoft-IIS/([^\s]+)`,
	`(?i)MySQL ([^\s]+)`,
	`(?i)PostgreSQL ([^\s]+)`,
	`(?i)SSH-2\.0-([^\r\n]+)`,
	`(?i)220 ([^\r\n]+) FTP`,
}

// webTechnologies maps a display name to body substrings that reveal it.
// One hit on any marker claims the technology; entries never repeat in the
// result set.
var webTechnologies = []TechSignature{
	{Name: "WordPress", Markers: []string{"wp-content", "wp-includes", "WordPress"}},
	{Name: "Joomla", Markers: []string{"joomla", "Joomla"}},
	{Name: "Drupal", Markers: []string{"Drupal.settings", "drupal"}},
	{Name: "Bootstrap", Markers: []string{"bootstrap.css", "bootstrap.min.css", "bootstrap.js"}},
	{Name: "jQuery", Markers: []string{"jquery.js", "jquery.min.js", "jQuery"}},
	{Name: "React", Markers: []string{"react.js", "react-dom.js", "react.production.min.js"}},
	{Name: "Angular", Markers: []string{"angular.js", "ng-app", "ng-controller"}},
	{Name: "Vue.js", Markers: []string{"vue.js", "vue.min.js"}},
	{Name: "Laravel", Markers: []string{"laravel", "Laravel"}},
	{Name: "Django", Markers: []string{"django", "csrftoken"}},
	{Name: "ASP.NET", Markers: []string{"__VIEWSTATE", "ASP.NET"}},
	{Name: "PHP", Markers: []string{"php", "PHP"}},
	{Name: "Node.js", Markers: []string{"node_modules", "Express"}},
	{Name: "Apache", Markers: []string{"apache", "Apache"}},
	{Name: "Nginx", Markers: []string{"nginx", "Nginx"}},
	{Name: "IIS", Markers: []string{"IIS", "Microsoft-IIS"}},
}
