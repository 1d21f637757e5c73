// Package model defines the domain entities shared across the collection
// engine: platforms, queues, summoners, and normalized match records.
package model

import "fmt"

// Platform identifies one regional server. Instances are built once at
// configuration load and are read-only afterwards.
type Platform struct {
	// Code is the unique platform key, e.g. "euw1".
	Code string
	// Host is the platform routing host used for summoner/league lookups.
	Host string
	// RegionalHost is the routing host for match/account APIs, e.g.
	// "europe.api.riotgames.com".
	RegionalHost string
	// Fallbacks lists alternate platform hosts within the same sub-region,
	// tried in order when the primary host is unreachable.
	Fallbacks []string
}

// regionalRoutes maps platform codes to their regional routing group.
var regionalRoutes = map[string]string{
	"na1": "americas", "br1": "americas", "la1": "americas", "la2": "americas",
	"euw1": "europe", "eun1": "europe", "tr1": "europe", "ru": "europe", "me1": "europe",
	"kr": "asia", "jp1": "asia",
	"oc1": "sea", "ph2": "sea", "sg2": "sea", "th2": "sea", "tw2": "sea", "vn2": "sea",
}

// subRegions groups platform codes that share infrastructure; members serve
// as fallback hosts for each other.
var subRegions = [][]string{
	{"euw1", "eun1", "tr1", "ru", "me1"},
	{"na1", "br1", "la1", "la2"},
	{"kr", "jp1"},
	{"oc1", "sg2", "ph2", "th2", "tw2", "vn2"},
}

const apiDomain = "api.riotgames.com"

// AllPlatformCodes lists every supported platform code in the default
// sequential scheduling order.
var AllPlatformCodes = []string{
	"euw1", "eun1", "na1", "br1", "la1", "la2",
	"kr", "jp1", "oc1", "ph2", "sg2", "th2", "tw2", "vn2",
	"tr1", "ru", "me1",
}

// NewPlatform builds the Platform for a known code.
func NewPlatform(code string) (Platform, error) {
	route, ok := regionalRoutes[code]
	if !ok {
		return Platform{}, fmt.Errorf("unknown platform code %q", code)
	}
	return Platform{
		Code:         code,
		Host:         fmt.Sprintf("%s.%s", code, apiDomain),
		RegionalHost: fmt.Sprintf("%s.%s", route, apiDomain),
		Fallbacks:    fallbackHosts(code),
	}, nil
}

// Sequence resolves an ordered list of platform codes into Platforms. The
// slice order is the scheduling order regions are collected in.
func Sequence(codes []string) ([]Platform, error) {
	platforms := make([]Platform, 0, len(codes))
	for _, code := range codes {
		p, err := NewPlatform(code)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func fallbackHosts(code string) []string {
	for _, group := range subRegions {
		for _, member := range group {
			if member != code {
				continue
			}
			hosts := make([]string, 0, len(group)-1)
			for _, alt := range group {
				if alt != code {
					hosts = append(hosts, fmt.Sprintf("%s.%s", alt, apiDomain))
				}
			}
			return hosts
		}
	}
	return nil
}
