/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

// plan is an offline scheduling request read by the preview command.
type plan struct {
	Start    string               `yaml:"start"`
	Accounts []string             `yaml:"accounts"`
	Policy   scheduling.RawPolicy `yaml:"policy"`
	Leads    []scheduling.Lead    `yaml:"leads"`
}

func (p *plan) startTime() (*time.Time, error) {
	return timeutil.ParseOptional(p.Start)
}

func loadPlan(path string) (*plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var p plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return &p, nil
}

// readLeadsCSV reads leads from a CSV file with a header row. An "email"
// column is required; "id" is optional and every other column lands in Fields.
func readLeadsCSV(r io.Reader) ([]scheduling.Lead, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	emailCol, idCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "email":
			emailCol = i
		case "id":
			idCol = i
		}
	}
	if emailCol < 0 {
		return nil, fmt.Errorf("csv header has no email column")
	}

	var leads []scheduling.Lead
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		lead := scheduling.Lead{Email: strings.TrimSpace(row[emailCol])}
		if idCol >= 0 {
			lead.ID = strings.TrimSpace(row[idCol])
		}
		if lead.ID == "" {
			lead.ID = fmt.Sprintf("row-%d", line)
		}
		for i, v := range row {
			if i == emailCol || i == idCol {
				continue
			}
			if lead.Fields == nil {
				lead.Fields = make(map[string]string)
			}
			lead.Fields[header[i]] = v
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func writeRecordsTable(w io.Writer, policy scheduling.Policy, records []scheduling.Record) error {
	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		loc = time.UTC
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLEAD\tEMAIL\tACCOUNT\tSEND AT (UTC)\tLOCAL")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Index,
			r.Lead.ID,
			r.Lead.Email,
			r.AccountID,
			timeutil.ToStorageFormat(r.SendAt),
			r.SendAt.In(loc).Format("Mon 2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}

func writeRecordsJSON(w io.Writer, policy scheduling.Policy, records []scheduling.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"policy":  policy.Raw(),
		"count":   len(records),
		"records": records,
	})
}

// validatePlanPolicy repairs raw and prints one line per repair to w. The
// validator itself stays silent so repairs are not also logged.
func validatePlanPolicy(raw scheduling.RawPolicy, w io.Writer) scheduling.Policy {
	policy, repairs := scheduling.NewValidator(zerolog.Nop()).Validate(raw)
	for _, r := range repairs {
		fmt.Fprintf(w, "policy repair: %s %q -> %q (%s)\n", r.Field, r.From, r.To, r.Reason)
	}
	return policy
}
