package native

import (
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"facter/internal/domain"
)

// containerMarkers are /proc/1/cgroup substrings, most specific first
var containerMarkers = []struct {
	marker  string
	runtime string
}{
	{"kubepods", "kubernetes"},
	{"crio-", "cri-o"},
	{"/crio/", "cri-o"},
	{"libpod-", "podman"},
	{"/libpod/", "podman"},
	{"containerd-", "containerd"},
	{"/containerd/", "containerd"},
	{"docker-", "docker"},
	{"/docker/", "docker"},
	{"/lxc/", "lxc"},
	{"lxc.payload", "lxc"},
}

// hypervisors maps DMI product name substrings to a virtual fact value
var hypervisors = []struct {
	marker  string
	virtual string
}{
	{"VirtualBox", "virtualbox"},
	{"VMware", "vmware"},
	{"KVM", "kvm"},
	{"QEMU", "kvm"},
	{"Hyper-V", "hyperv"},
	{"Virtual Machine", "hyperv"},
	{"Bochs", "bochs"},
	{"Parallels", "parallels"},
	{"Google Compute Engine", "gce"},
}

// containerRuntime detects the container runtime we run under, or ""
func (p *Provider) containerRuntime() string {
	if p.getenv("KUBERNETES_SERVICE_HOST") != "" ||
		p.exists("/var/run/secrets/kubernetes.io/serviceaccount/token") {
		return "kubernetes"
	}

	if cgroup := p.readFile("/proc/1/cgroup"); cgroup != "" {
		for _, m := range containerMarkers {
			if strings.Contains(cgroup, m.marker) {
				return m.runtime
			}
		}
	}

	if p.exists("/run/.containerenv") {
		return "podman"
	}
	if p.exists("/.dockerenv") {
		return "docker"
	}
	switch c := p.getenv("container"); c {
	case "podman", "lxc", "docker", "systemd-nspawn":
		return c
	}
	return ""
}

// hypervisor detects the virtual machine platform, or ""
func (p *Provider) hypervisor() string {
	if product := p.readFile("/sys/class/dmi/id/product_name"); product != "" {
		for _, h := range hypervisors {
			if strings.Contains(product, h.marker) {
				return h.virtual
			}
		}
	}

	if cpuinfo := p.readFile("/proc/cpuinfo"); strings.Contains(cpuinfo, " hypervisor") {
		return "virtual"
	}
	return ""
}

func resolveVirtualization(p *Provider, fs *domain.FactSet) {
	virtual := "physical"
	if rt := p.containerRuntime(); rt != "" {
		virtual = rt

		container := domain.NewMap()
		container.Set("runtime", domain.String(rt))
		if rt == "kubernetes" {
			k8s := domain.NewMap()
			putString(k8s, "namespace", p.readFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"))
			putString(k8s, "pod", p.getenv("POD_NAME"))
			putString(k8s, "node", p.getenv("NODE_NAME"))
			putString(k8s, "service_host", p.getenv("KUBERNETES_SERVICE_HOST"))
			if k8s.Len() > 0 {
				container.Set("kubernetes", k8s)
			}
		}
		fs.Set("container", container)
	} else if hv := p.hypervisor(); hv != "" {
		virtual = hv
	}

	fs.Set("virtual", domain.String(virtual))
	fs.Set("is_virtual", domain.Boolean(virtual != "physical"))

	dmi := domain.NewMap()
	putString(dmi, "product_name", p.readFile("/sys/class/dmi/id/product_name"))
	putString(dmi, "manufacturer", p.readFile("/sys/class/dmi/id/sys_vendor"))
	putString(dmi, "bios_vendor", p.readFile("/sys/class/dmi/id/bios_vendor"))
	putString(dmi, "bios_version", p.readFile("/sys/class/dmi/id/bios_version"))
	if dmi.Len() > 0 {
		fs.Set("dmi", dmi)
	}
}

func resolveIdentity(_ *Provider, fs *domain.FactSet) {
	identity := domain.NewMap()

	euid := os.Geteuid()
	if euid >= 0 {
		identity.Set("uid", domain.Integer(euid))
		identity.Set("privileged", domain.Boolean(euid == 0))
	}
	if gid := os.Getegid(); gid >= 0 {
		identity.Set("gid", domain.Integer(gid))
	}

	if u, err := user.Current(); err == nil {
		identity.Set("user", domain.String(u.Username))
		if g, err := user.LookupGroupId(u.Gid); err == nil {
			identity.Set("group", domain.String(g.Name))
		}
	}

	if identity.Len() > 0 {
		fs.Set("identity", identity)
	}
}

func resolveSystem(p *Provider, fs *domain.FactSet) {
	setString(fs, "path", p.getenv("PATH"))

	zone, _ := time.Now().Zone()
	setString(fs, "timezone", zone)

	uptime := p.readFile("/proc/uptime")
	if uptime == "" {
		return
	}
	first, _, _ := strings.Cut(uptime, " ")
	secs, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return
	}

	total := int64(secs)
	m := domain.NewMap()
	m.Set("seconds", domain.Integer(total))
	m.Set("hours", domain.Integer(total/3600))
	m.Set("days", domain.Integer(total/86400))
	m.Set("uptime", domain.String(formatUptime(total)))
	fs.Set("system_uptime", m)
}

// formatUptime renders seconds as "3 days", "5:02 hours" or "12 minutes"
func formatUptime(secs int64) string {
	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60

	switch {
	case days == 1:
		return "1 day"
	case days > 1:
		return strconv.FormatInt(days, 10) + " days"
	case hours > 0:
		return strconv.FormatInt(hours, 10) + ":" + twoDigits(minutes) + " hours"
	default:
		return strconv.FormatInt(minutes, 10) + " minutes"
	}
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
