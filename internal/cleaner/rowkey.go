package cleaner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	keySep  = "\x1f"
	keyNull = "\x00"
)

// RowKey returns a sha256 digest identifying the full contents of row.
// Two rows share a key only if every cell has the same type and value, so
// "1" and 1.0 stay distinct while nil and "" do too.
func RowKey(row []any) string {
	var b strings.Builder
	var scratch [64]byte
	for i, v := range row {
		if i > 0 {
			b.WriteString(keySep)
		}
		appendCanonicalValue(&b, v, &scratch)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func appendCanonicalValue(b *strings.Builder, v any, scratch *[64]byte) {
	switch t := v.(type) {
	case nil:
		b.WriteString(keyNull)
	case string:
		b.WriteString("s:")
		b.WriteString(t)
	case int64:
		b.WriteString("i:")
		b.Write(strconv.AppendInt(scratch[:0], t, 10))
	case int:
		b.WriteString("i:")
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case float64:
		b.WriteString("f:")
		b.Write(strconv.AppendFloat(scratch[:0], t, 'g', -1, 64))
	case bool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(t))
	default:
		fmt.Fprintf(b, "%T:%v", t, t)
	}
}
