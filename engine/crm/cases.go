// Package crm records escalated calls as cases in Neo4j so advisors pick
// them up with the decision context attached. Only escalations land here;
// KB-answered calls leave no case behind.
package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// HandoffCase is one escalated call awaiting an advisor.
type HandoffCase struct {
	ID         string          `json:"id"`
	CallerID   string          `json:"caller_id"`
	Query      string          `json:"query"`
	Decision   domain.Decision `json:"decision"`
	OpenedAt   time.Time       `json:"opened_at"`
	Status     string          `json:"status"` // "open" or "closed"
}

// CaseStore persists handoff cases as (:Caller)-[:OPENED]->(:Case) pairs.
type CaseStore struct {
	driver neo4j.DriverWithContext
}

// NewCaseStore creates a CaseStore over an existing driver.
func NewCaseStore(driver neo4j.DriverWithContext) *CaseStore {
	return &CaseStore{driver: driver}
}

// OpenCase merges the caller node and attaches a new open case carrying the
// decision that triggered the escalation.
func (s *CaseStore) OpenCase(ctx context.Context, c HandoffCase) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (caller:Caller {id: $caller_id})
	 CREATE (case:Case {
	   id: $id, query: $query,
	   intent: $intent, urgency: $urgency, confidence: $confidence,
	   opened_at: $opened_at, status: 'open'
	 })
	 CREATE (caller)-[:OPENED]->(case)`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"caller_id":  c.CallerID,
		"id":         c.ID,
		"query":      c.Query,
		"intent":     c.Decision.Intent,
		"urgency":    string(c.Decision.Urgency),
		"confidence": c.Decision.Confidence,
		"opened_at":  c.OpenedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("crm: open case %s: %w", c.ID, err)
	}
	return nil
}

// CloseCase marks a case closed, keeping it for the dashboard's history.
func (s *CaseStore) CloseCase(ctx context.Context, caseID string) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MATCH (c:Case {id: $id}) SET c.status = 'closed'`,
		map[string]any{"id": caseID})
	if err != nil {
		return fmt.Errorf("crm: close case %s: %w", caseID, err)
	}
	return nil
}

// ListOpenCases returns open cases, most urgent first, newest within the
// same urgency.
func (s *CaseStore) ListOpenCases(ctx context.Context, limit int) ([]HandoffCase, error) {
	if limit <= 0 {
		limit = 50
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (caller:Caller)-[:OPENED]->(c:Case {status: 'open'})
	 RETURN caller.id AS caller_id, c
	 ORDER BY
	   CASE c.urgency WHEN 'high' THEN 0 WHEN 'med' THEN 1 ELSE 2 END,
	   c.opened_at DESC
	 LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("crm: list open cases: %w", err)
	}

	var cases []HandoffCase
	for result.Next(ctx) {
		rec := result.Record()
		c, err := caseFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("crm: decode case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("crm: list open cases: %w", err)
	}
	return cases, nil
}

func caseFromRecord(rec *neo4j.Record) (HandoffCase, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "c")
	if err != nil {
		return HandoffCase{}, err
	}
	callerID, _, err := neo4j.GetRecordValue[string](rec, "caller_id")
	if err != nil {
		return HandoffCase{}, err
	}

	props := node.Props
	c := HandoffCase{
		ID:       strProp(props, "id"),
		CallerID: callerID,
		Query:    strProp(props, "query"),
		Status:   strProp(props, "status"),
		Decision: domain.Decision{
			Intent:     strProp(props, "intent"),
			Urgency:    domain.Urgency(strProp(props, "urgency")),
			Confidence: floatProp(props, "confidence"),
			Action:     domain.ActionEscalate,
		},
	}
	if ts, err := time.Parse(time.RFC3339, strProp(props, "opened_at")); err == nil {
		c.OpenedAt = ts
	}
	return c, nil
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func floatProp(props map[string]any, key string) float64 {
	if f, ok := props[key].(float64); ok {
		return f
	}
	return 0
}
