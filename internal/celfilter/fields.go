package celfilter

// fieldsBySource lists the recognized field names per event source. A field
// reference outside these lists is rejected by the host as undefined,
// whether it reaches the filter-builder walk or an output template.
var fieldsBySource = map[string][]string{
	"syscall": {
		"evt.type", "evt.dir", "evt.num", "evt.time", "evt.arg", "evt.rawarg", "evt.buffer",
		"proc.name", "proc.pname", "proc.cmdline", "proc.pid", "proc.ppid", "proc.exepath",
		"proc.cwd", "proc.user", "proc.aname",
		"fd.name", "fd.type", "fd.num", "fd.directory", "fd.ip", "fd.port", "fd.sip", "fd.sport",
		"user.name", "user.uid", "user.loginuid", "user.loginshell",
		"container.id", "container.name", "container.image.repository", "container.image.tag",
		"container.privileged", "container.info",
		"k8s.pod.name", "k8s.pod.label", "k8s.ns.name",
	},
	"k8s_audit": {
		"ka.verb", "ka.user.name", "ka.target.name", "ka.target.namespace",
		"ka.target.resource", "ka.target.subresource", "ka.req.pod.containers.image",
		"ka.req.pod.host_ipc", "ka.req.pod.host_network", "ka.req.pod.host_pid",
		"ka.response.code", "ka.response.reason", "ka.uri", "ka.auth.decision",
		"ka.auth.reason",
	},
}

// engineVersion is the reference host's own fixed version number, used to
// reject a rules document whose required_engine_version exceeds it.
const engineVersion uint64 = 15

// Sources returns the event sources this host recognizes, in map-iteration
// order (unsorted; callers that need a deterministic order should sort).
func Sources() []string {
	out := make([]string, 0, len(fieldsBySource))
	for source := range fieldsBySource {
		out = append(out, source)
	}
	return out
}
