package datasette

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/openplanning/dupaudit/pkg/errors"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// Query runs SQL against a database through the service's JSON endpoint
// and returns the result as a table. The endpoint shape is
// /<db>.json?sql=...&_shape=array&_size=max, returning an array of
// row objects.
func (c *Client) Query(ctx context.Context, db, sql string) (*tabular.Table, error) {
	source := db + " query"

	params := url.Values{}
	params.Set("sql", sql)
	params.Set("_shape", "array")
	params.Set("_size", "max")
	endpoint := c.baseURL + "/" + db + ".json?" + params.Encode()

	var lastErr error
	backoff := c.retry.Backoff
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}

		table, err := c.queryOnce(ctx, source, endpoint)
		if err == nil {
			return table, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			break
		}
	}

	return nil, lastErr
}

// queryOnce performs a single query attempt.
func (c *Client) queryOnce(ctx context.Context, source, endpoint string) (*tabular.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapFetch(source, endpoint, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapFetch(source, endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError(source, endpoint, resp.StatusCode,
			errors.New("unexpected status "+resp.Status))
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.WrapParse("json", source, err)
	}

	return rowsToTable(source, rows), nil
}

// rowsToTable flattens decoded row objects into a table with a
// deterministic (sorted) column order.
func rowsToTable(source string, rows []map[string]any) *tabular.Table {
	columnSet := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			columnSet[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for k := range columnSet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(columns))
		for j, col := range columns {
			cells[i][j] = cellString(row[col])
		}
	}

	return tabular.New(source, columns, cells)
}

// cellString renders a decoded JSON value as a CSV-equivalent cell.
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
