// pkg/transformer/explode.go
package transformer

import "github.com/transitops/wmata-ingress/pkg/contract"

// ExplodeField flattens a multivalued field into one raw record per list
// element, carrying the kept fields alongside the scalar element value.
// Records where the field is missing or not a list contribute nothing;
// they surface as rejects when the exploded records are transformed under
// a contract that requires the field.
func ExplodeField(raws []contract.RawRecord, keep []string, listField string) []contract.RawRecord {
	var out []contract.RawRecord

	for _, raw := range raws {
		list, ok := raw[listField].([]interface{})
		if !ok {
			continue
		}
		for _, item := range list {
			rec := make(contract.RawRecord, len(keep)+1)
			for _, k := range keep {
				rec[k] = raw[k]
			}
			rec[listField] = item
			out = append(out, rec)
		}
	}

	return out
}
