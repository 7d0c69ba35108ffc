package native

import (
	"fmt"
	"net"
	"os"
	"strings"

	"facter/internal/domain"
)

// primaryKeys copies entries of the primary interface to networking and to
// the flat legacy facts
var primaryKeys = []struct{ entry, legacy string }{
	{"ip", "ipaddress"},
	{"ip6", "ipaddress6"},
	{"netmask", "netmask"},
	{"network", "network"},
	{"mac", "macaddress"},
}

func resolveNetworking(p *Provider, fs *domain.FactSet) {
	networking := domain.NewMap()

	hostname, err := os.Hostname()
	if err == nil {
		short, domainName, _ := strings.Cut(hostname, ".")
		if domainName == "" {
			domainName = p.searchDomain()
		}
		setString(fs, "hostname", short)
		putString(networking, "hostname", short)
		if domainName != "" {
			setString(fs, "domain", domainName)
			putString(networking, "domain", domainName)
			setString(fs, "fqdn", short+"."+domainName)
			putString(networking, "fqdn", short+"."+domainName)
		} else {
			setString(fs, "fqdn", short)
			putString(networking, "fqdn", short)
		}
	}

	interfaces, primary := interfaceFacts()
	if interfaces.Len() > 0 {
		networking.Set("interfaces", interfaces)
		fs.Set("interfaces", domain.String(strings.Join(interfaces.Keys(), ",")))
	}

	iface, gateway := p.defaultRoute()
	if iface != "" {
		primary = iface
	}
	if primary != "" {
		networking.Set("primary", domain.String(primary))
		if v, ok := interfaces.Get(primary); ok {
			m := v.(*domain.Map)
			for _, key := range primaryKeys {
				if e, ok := m.Get(key.entry); ok {
					networking.Set(key.entry, e)
					fs.Set(key.legacy, e)
				}
			}
		}
	}
	putString(networking, "gateway", gateway)

	if ns := p.nameservers(); len(ns) > 0 {
		dns := domain.NewMap()
		dns.Set("nameservers", ns)
		networking.Set("dns", dns)
	}

	if networking.Len() > 0 {
		fs.Set("networking", networking)
	}
}

// interfaceFacts describes every up, non-loopback interface and returns the
// first one that has an IPv4 address
func interfaceFacts() (*domain.Map, string) {
	out := domain.NewMap()
	ifaces, err := net.Interfaces()
	if err != nil {
		return out, ""
	}

	var primary string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		m := domain.NewMap()
		m.Set("mtu", domain.Integer(iface.MTU))
		putString(m, "mac", iface.HardwareAddr.String())

		addrs, _ := iface.Addrs()
		var bindings, bindings6 domain.Array
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			b := domain.NewMap()
			b.Set("address", domain.String(ipnet.IP.String()))
			b.Set("netmask", domain.String(net.IP(ipnet.Mask).String()))
			b.Set("network", domain.String(ipnet.IP.Mask(ipnet.Mask).String()))

			if ip4 := ipnet.IP.To4(); ip4 != nil {
				if len(bindings) == 0 {
					m.Set("ip", domain.String(ip4.String()))
					m.Set("netmask", domain.String(net.IP(ipnet.Mask).String()))
					m.Set("network", domain.String(ip4.Mask(ipnet.Mask).String()))
					ones, _ := ipnet.Mask.Size()
					m.Set("cidr", domain.String(fmt.Sprintf("%s/%d", ip4.Mask(ipnet.Mask), ones)))
				}
				bindings = append(bindings, b)
			} else {
				if len(bindings6) == 0 {
					m.Set("ip6", domain.String(ipnet.IP.String()))
				}
				bindings6 = append(bindings6, b)
			}
		}
		if len(bindings) > 0 {
			m.Set("bindings", bindings)
			if primary == "" {
				primary = iface.Name
			}
		}
		if len(bindings6) > 0 {
			m.Set("bindings6", bindings6)
		}

		out.Set(iface.Name, m)
	}
	return out, primary
}

// defaultRoute reads the default route interface and gateway from
// /proc/net/route
func (p *Provider) defaultRoute() (iface, gateway string) {
	data := p.readFile("/proc/net/route")
	lines := strings.Split(data, "\n")
	if len(lines) < 2 {
		return "", ""
	}

	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		gw := fields[2]
		if len(gw) != 8 {
			continue
		}
		// Gateway is hex, little-endian
		var b1, b2, b3, b4 uint8
		if _, err := fmt.Sscanf(gw, "%02x%02x%02x%02x", &b4, &b3, &b2, &b1); err != nil {
			continue
		}
		return fields[0], fmt.Sprintf("%d.%d.%d.%d", b1, b2, b3, b4)
	}
	return "", ""
}

func (p *Provider) resolvConf() []string {
	content := p.readFile("/etc/resolv.conf")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func (p *Provider) nameservers() domain.Array {
	var out domain.Array
	for _, line := range p.resolvConf() {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "nameserver" {
			out = append(out, domain.String(fields[1]))
		}
	}
	return out
}

// searchDomain returns the domain or first search entry of resolv.conf
func (p *Provider) searchDomain() string {
	var search string
	for _, line := range p.resolvConf() {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "domain":
			return fields[1]
		case "search":
			if search == "" {
				search = fields[1]
			}
		}
	}
	return search
}
