package google

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tracker/internal/gateway"
)

func headerRow(kind gateway.Kind) []interface{} {
	cols := gateway.FieldsOf(kind)
	out := make([]interface{}, 0, len(cols)+1)
	out = append(out, "id")
	for _, c := range cols {
		out = append(out, c)
	}
	return out
}

func rowValues(r gateway.Record) []interface{} {
	cols := gateway.FieldsOf(r.Kind)
	out := make([]interface{}, 0, len(cols)+1)
	out = append(out, r.ID)
	for _, c := range cols {
		out = append(out, r.Fields[c])
	}
	return out
}

// lastColumn returns the letter of the last column used by kind.
func lastColumn(kind gateway.Kind) string {
	return columnLetter(len(gateway.FieldsOf(kind)) + 1)
}

// columnLetter converts a 1-based column index to A1 notation (1 -> A, 27 -> AA).
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// parseRecords converts a values matrix into records, using the header row
// to map columns. Rows with an empty id (cleared rows) are skipped. The
// second result maps each id to its 1-based sheet row.
func parseRecords(kind gateway.Kind, values [][]interface{}) ([]gateway.Record, map[string]int) {
	rows := map[string]int{}
	if len(values) == 0 {
		return nil, rows
	}
	headers := toStrings(values[0])
	colID := indexOf(headers, "id")
	offset := 2
	if colID == -1 {
		// Headerless tab: assume the canonical layout.
		headers = toStrings(headerRow(kind))
		colID = 0
		offset = 1
	} else {
		values = values[1:]
	}

	var out []gateway.Record
	for i, v := range values {
		row := toStrings(v)
		id := safeGet(row, colID)
		if id == "" {
			continue
		}
		r := gateway.Record{Kind: kind, ID: id, Fields: map[string]string{}}
		for j, h := range headers {
			if j == colID || h == "" {
				continue
			}
			if val := safeGet(row, j); val != "" {
				r.Fields[h] = val
			}
		}
		out = append(out, r)
		rows[id] = i + offset
	}
	return out, rows
}

func findRow(values [][]interface{}, id string) int {
	for i, v := range values {
		if len(v) > 0 && strings.TrimSpace(fmt.Sprint(v[0])) == id {
			return i + 1
		}
	}
	return 0
}

var rangeRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number from an A1 range such as "Tab!A5:F5".
func rowFromRange(rng string) (int, bool) {
	m := rangeRowRe.FindStringSubmatch(rng)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(xs []string, target string) int {
	for i, x := range xs {
		if strings.EqualFold(x, target) {
			return i
		}
	}
	return -1
}

func safeGet(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
