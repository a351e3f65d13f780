package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/danmuck/dashlink/internal/dash"
	"github.com/danmuck/dashlink/internal/protocol"
	"gopkg.in/yaml.v3"
)

type format string

const (
	formatTable format = "table"
	formatJSON  format = "json"
	formatYAML  format = "yaml"
)

func parseFormat(raw string) (format, error) {
	switch f := format(strings.ToLower(strings.TrimSpace(raw))); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	case "":
		return formatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q", raw)
	}
}

// record is one printable row. kinds reuses it with Request naming the group.
type record struct {
	Request string `json:"request" yaml:"request"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Value   string `json:"value,omitempty" yaml:"value,omitempty"`
	Result  string `json:"result,omitempty" yaml:"result,omitempty"`
}

func dataRecord(r dash.DataResult) record {
	rec := record{
		Request: protocol.RequestGetData.String(),
		Kind:    r.Kind.String(),
		Code:    strconv.Itoa(int(r.Kind)),
		Result:  r.Err.String(),
	}
	if r.Err == protocol.ErrorSuccess {
		rec.Value = r.Value.String()
	}
	return rec
}

func featureRecord(req protocol.RequestKind, r dash.FeatureResult) record {
	return record{
		Request: req.String(),
		Kind:    r.Kind.String(),
		Code:    strconv.Itoa(int(r.Kind)),
		Value:   r.State.String(),
		Result:  r.Err.String(),
	}
}

func kindRecords() []record {
	var out []record
	for _, k := range protocol.DataKinds() {
		out = append(out, record{Request: "data", Kind: k.String(), Code: strconv.Itoa(int(k)), Value: k.Shape().String()})
	}
	for _, k := range protocol.FeatureKinds() {
		out = append(out, record{Request: "feature", Kind: k.String(), Code: strconv.Itoa(int(k))})
	}
	for s := protocol.FeatureStateOff; s <= protocol.FeatureStateRingerSilent; s++ {
		out = append(out, record{Request: "state", Kind: s.String(), Code: strconv.Itoa(int(s))})
	}
	return out
}

func printRecords(w io.Writer, raw string, recs []record) error {
	f, err := parseFormat(raw)
	if err != nil {
		return err
	}
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(recs) == 1 {
			return enc.Encode(recs[0])
		}
		return enc.Encode(recs)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		if len(recs) == 1 {
			return enc.Encode(recs[0])
		}
		return enc.Encode(recs)
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "REQUEST\tKIND\tCODE\tVALUE\tRESULT")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Request, r.Kind, r.Code, dash0(r.Value), dash0(r.Result))
		}
		return tw.Flush()
	}
}

func dash0(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
