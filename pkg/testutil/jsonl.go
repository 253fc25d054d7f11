package testutil

import (
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// ToJSONL encodes risks one object per line, the format rb --import reads.
func ToJSONL(risks []model.Risk) string {
	var sb strings.Builder
	for _, r := range risks {
		data, err := json.Marshal(r)
		if err != nil {
			panic(err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}
