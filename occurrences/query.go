package occurrences

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/civil-defense-api/models"
)

// Listing defaults
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// queryPlan splits a listing request into what the store evaluates and what
// is evaluated in memory afterwards
type queryPlan struct {
	filter bson.M
	// sortInMemory is set when an equality filter on category or status
	// forfeits the store side ordering on startDateTime
	sortInMemory bool
	search       string
	requester    string
}

// planQuery decides which filters are pushed down to the store. category and
// status become equality filters, startDate and endDate an inclusive range on
// startDateTime. search and requesterName are always evaluated in memory.
func planQuery(f models.OccurrenceFilter) (queryPlan, error) {
	plan := queryPlan{
		filter:    bson.M{},
		search:    strings.ToLower(f.Search),
		requester: strings.ToLower(f.RequesterName),
	}

	if f.Category != "" {
		plan.filter["category"] = f.Category
		plan.sortInMemory = true
	}
	if f.Status != "" {
		plan.filter["status"] = f.Status
		plan.sortInMemory = true
	}

	dateRange := bson.M{}
	if f.StartDate != "" {
		t, err := ParseDateTime(f.StartDate)
		if err != nil {
			return queryPlan{}, wrap("startDate", err)
		}
		dateRange["$gte"] = t
	}
	if f.EndDate != "" {
		t, err := ParseDateTime(f.EndDate)
		if err != nil {
			return queryPlan{}, wrap("endDate", err)
		}
		dateRange["$lte"] = t
	}
	if len(dateRange) > 0 {
		plan.filter["startDateTime"] = dateRange
	}
	return plan, nil
}

// findOptions returns the store side ordering, only used when no equality
// filter was pushed down
func (p queryPlan) findOptions() *options.FindOptions {
	if p.sortInMemory {
		return options.Find()
	}
	return options.Find().SetSort(bson.D{{Key: "startDateTime", Value: -1}})
}

// refine runs the in-memory phase: ordering when required, then the search
// and requester filters. Both text filters must pass when both are set.
func (p queryPlan) refine(docs []models.OccurrenceDocument) []models.OccurrenceDocument {
	if p.sortInMemory {
		sortByStartDesc(docs)
	}
	if p.search == "" && p.requester == "" {
		return docs
	}

	out := docs[:0:0]
	for _, doc := range docs {
		if p.search != "" && !matchesSearch(doc, p.search) {
			continue
		}
		if p.requester != "" && !containsFold(doc.RequesterName, p.requester) {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// sortByStartDesc orders by startDateTime, newest first. Equal instants keep
// the order the store returned them in.
func sortByStartDesc(docs []models.OccurrenceDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return instant(docs[i].StartDateTime).After(instant(docs[j].StartDateTime))
	})
}

func matchesSearch(doc models.OccurrenceDocument, term string) bool {
	if containsFold(doc.Description, term) ||
		containsFold(doc.RANumber, term) ||
		containsFold(doc.RequesterName, term) {
		return true
	}
	return doc.Location != nil && containsFold(doc.Location.Address, term)
}

// containsFold reports whether s contains the already lower cased term
func containsFold(s, term string) bool {
	return strings.Contains(strings.ToLower(s), term)
}

// paginate returns the 1-based page of docs. Missing or non positive page
// and limit fall back to the defaults. Pages past the end are empty.
func paginate(docs []models.OccurrenceDocument, page, limit int) ([]models.OccurrenceDocument, int, int, int) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	total := len(docs)
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	if page-1 >= totalPages {
		return nil, page, limit, totalPages
	}

	// (page-1)*limit < total here, so neither bound can overflow
	start := (page - 1) * limit
	end := total
	if limit < total-start {
		end = start + limit
	}
	return docs[start:end], page, limit, totalPages
}
