package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/senyabanana/engagement-service/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(format string) bool {
	return format == formatTable || format == formatJSON || format == formatYAML
}

func renderThread(w io.Writer, thread *models.NegotiationThread, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(thread)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(thread); err != nil {
			return err
		}
		return enc.Close()
	}

	req := thread.Request
	provider := "-"
	if req.ProviderID != nil {
		provider = *req.ProviderID
	}
	fmt.Fprintf(w, "%s [%s] organizer=%s provider=%s locked=%t\n",
		req.Title, req.Status, req.OrganizerID, provider, req.IsAgreementLocked)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Status", "Submitted By", "Title", "Budget", "Responses"})
	for _, card := range thread.Cards {
		tw.AppendRow(table.Row{card.CardNumber, card.Status, card.SubmittedBy, card.Terms.Title,
			formatBudget(card.Terms.Budget), formatResponses(card.Responses)})
	}
	tw.Render()
	return nil
}

func formatBudget(b *models.BudgetRange) string {
	if b == nil {
		return "-"
	}
	if b.Min == b.Max {
		return fmt.Sprintf("%d %s", b.Min, b.Currency)
	}
	return fmt.Sprintf("%d-%d %s", b.Min, b.Max, b.Currency)
}

func formatResponses(responses []models.ResponseRecord) string {
	parts := make([]string, 0, len(responses))
	for _, r := range responses {
		parts = append(parts, r.RespondedBy+":"+string(r.ResponseType))
	}
	return strings.Join(parts, ", ")
}
