package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tapglue/visits/core"
)

const fmtVisits = "Number of visits is %d"

// VisitCount returns the current number of visits without recording one.
func VisitCount(fn core.VisitCountFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		v, err := fn()
		if err != nil {
			respondError(w, 0, err)
			return
		}

		respondJSON(w, http.StatusOK, &payloadCounter{Value: v})
	}
}

// VisitRecord reports the number of previous visits and records the current
// one.
func VisitRecord(fn core.VisitRecordFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		v, err := fn()
		if err != nil {
			respondError(w, 0, err)
			return
		}

		respondText(w, http.StatusOK, fmt.Sprintf(fmtVisits, v))
	}
}

type payloadCounter struct {
	Value uint64 `json:"value"`
}
