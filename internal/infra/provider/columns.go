package provider

import (
	"fmt"
	"net/url"
)

// dataTablesParams builds the column descriptors the company pages' DataTables widget
// sends with every request. Some endpoints answer with an empty batch without them.
func dataTablesParams(columns ...string) url.Values {
	v := url.Values{}
	for i, c := range columns {
		prefix := fmt.Sprintf("columns[%d]", i)
		v.Set(prefix+"[data]", c)
		v.Set(prefix+"[name]", "")
		v.Set(prefix+"[searchable]", "true")
		v.Set(prefix+"[orderable]", "false")
		v.Set(prefix+"[search][value]", "")
		v.Set(prefix+"[search][regex]", "false")
	}
	v.Set("search[value]", "")
	v.Set("search[regex]", "false")
	return v
}
