package server

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/teranos/discograph/cache"
	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/graph"
	grapherror "github.com/teranos/discograph/graph/error"
)

// networkQuery is a parsed network request, shared by HTTP and WebSocket.
type networkQuery struct {
	key    entity.Key
	roles  []string
	year   *graph.YearRange
	mobile bool
}

// pathKey reads {entityType} and {entityID}. ok is false when either is
// malformed; the caller answers 404 "Bad Entity Type".
func pathKey(r *http.Request) (entity.Key, bool) {
	t, err := entity.ParseType(r.PathValue("entityType"))
	if err != nil {
		return entity.Key{}, false
	}
	id, err := strconv.Atoi(r.PathValue("entityID"))
	if err != nil || id <= 0 {
		return entity.Key{}, false
	}
	return entity.Key{Type: t, ID: id}, true
}

// parseRoles collects roles[] and roles values, validates them against the
// catalog and returns them sorted without duplicates.
func (s *DiscographServer) parseRoles(values url.Values) ([]string, error) {
	seen := make(map[string]bool)
	var roles []string
	for _, name := range []string{"roles[]", "roles"} {
		for _, r := range values[name] {
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			roles = append(roles, r)
		}
	}
	if err := s.catalog.Validate(roles); err != nil {
		return nil, grapherror.New(grapherror.CategoryRequest, err, "").
			WithSubcategory(grapherror.SubcategoryRequestRole)
	}
	sort.Strings(roles)
	return roles, nil
}

func parseYear(raw string) (*graph.YearRange, error) {
	year, err := graph.ParseYearRange(raw)
	if err != nil {
		return nil, grapherror.New(grapherror.CategoryRequest, err, "").
			WithSubcategory(grapherror.SubcategoryRequestYear)
	}
	return year, nil
}

// parseNetworkQuery reads roles, year and mobile from the query string.
func (s *DiscographServer) parseNetworkQuery(key entity.Key, values url.Values) (*networkQuery, error) {
	roles, err := s.parseRoles(values)
	if err != nil {
		return nil, err
	}
	year, err := parseYear(values.Get("year"))
	if err != nil {
		return nil, err
	}
	mobile, _ := strconv.ParseBool(values.Get("mobile"))
	return &networkQuery{key: key, roles: roles, year: year, mobile: mobile}, nil
}

// options maps q onto builder options using the web or mobile budgets.
func (s *DiscographServer) options(q *networkQuery) graph.Options {
	cfg := s.settings.Load().network
	opts := graph.Options{
		Degree:    cfg.Degree,
		MaxNodes:  cfg.MaxNodes,
		LinkRatio: cfg.LinkRatio,
		PageCount: cfg.PageCount,
		Roles:     q.roles,
		Year:      q.year,
	}
	if q.mobile {
		opts.Degree = cfg.MobileDegree
		opts.MaxNodes = cfg.MobileMaxNodes
	}
	return opts
}

// cacheKey is the network cache key of q.
func (q *networkQuery) cacheKey() string {
	year := ""
	if q.year != nil {
		year = q.year.String()
	}
	return cache.NetworkKey(q.key.Type, q.key.ID, q.mobile, q.roles, year)
}
