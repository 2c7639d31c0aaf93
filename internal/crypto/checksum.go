package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// checksumDomain префикс домена для дайджеста записи.
// Суффикс версии позволяет сменить алгоритм без коллизий со старыми значениями.
const checksumDomain = "changesync/record/v1"

// Checksum вычисляет детерминированный дайджест payload.
// Одинаковые значения полей при любом порядке ключей дают одинаковый результат.
func Checksum(payload map[string]any) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	return digest(canonical), nil
}

// ChecksumJSON вычисляет дайджест для произвольного JSON документа
func ChecksumJSON(raw []byte) (string, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return "", err
	}
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	return digest(canonical), nil
}

// SumCanonical вычисляет дайджест уже канонизированного JSON
func SumCanonical(canonical []byte) string {
	return digest(canonical)
}

// CanonicalizeJSON переводит JSON документ в каноническую форму
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	return Canonicalize(v)
}

// digest BLAKE2b-256(domain || 0x00 || canonical), hex
func digest(canonical []byte) string {
	h, _ := blake2b.New256(nil) // ошибка возможна только при ключе > 64 байт
	h.Write([]byte(checksumDomain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return v, nil
}

// Canonicalize produces canonical JSON:
//   - object keys sorted by UTF-16 code units
//   - strings NFC normalized, no HTML escaping
//   - numbers as exact decimals, see formatDecimal
//   - no insignificant whitespace
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeString(buf, val)
	case json.Number:
		return writeNumber(buf, string(val))
	case float64:
		return writeFloat(buf, val)
	case float32:
		return writeFloat(buf, float64(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		return writeObject(buf, val)
	case json.RawMessage:
		inner, err := decodeJSON(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, inner)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	// Ключи нормализуются до сортировки, иначе NFC/NFD варианты
	// одного ключа дали бы разный порядок.
	normalized := make(map[string]any, len(obj))
	for k, v := range obj {
		nk := norm.NFC.String(k)
		if _, dup := normalized[nk]; dup {
			return fmt.Errorf("duplicate key after normalization: %q", nk)
		}
		normalized[nk] = v
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, normalized[k]); err != nil {
			return fmt.Errorf("%q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	return slices.Compare(ua, ub)
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// Encoder добавляет перевод строки
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// maxPlainExponent граница, за которой число пишется в экспоненциальной форме.
// Без нее 1e1000000 развернулось бы в миллион нулей.
const maxPlainExponent = 64

// writeNumber пишет число без потери точности. Значение разбирается как
// десятичное, поэтому 1.50, 1.5 и 15e-1 дают одинаковую запись,
// а числа за пределами точности float64 остаются различимыми.
func writeNumber(buf *bytes.Buffer, s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	buf.WriteString(formatDecimal(d))
	return nil
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number: %v", f)
	}
	return writeNumber(buf, strconv.FormatFloat(f, 'g', -1, 64))
}

// formatDecimal каноническая запись d = coef * 10^exp:
//   - коэффициент без хвостовых нулей, ноль всегда "0"
//   - при |exp| <= maxPlainExponent обычная десятичная запись
//   - иначе "<digits>e<exp>" с целым коэффициентом
func formatDecimal(d decimal.Decimal) string {
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return "0"
	}

	digits := coef.String()
	sign := ""
	if digits[0] == '-' {
		sign, digits = "-", digits[1:]
	}

	trimmed := strings.TrimRight(digits, "0")
	exp := int64(d.Exponent()) + int64(len(digits)-len(trimmed))
	digits = trimmed
	n := int64(len(digits))

	switch {
	case exp >= 0 && exp <= maxPlainExponent:
		return sign + digits + strings.Repeat("0", int(exp))
	case exp < 0 && -exp <= maxPlainExponent:
		if n > -exp {
			return sign + digits[:n+exp] + "." + digits[n+exp:]
		}
		return sign + "0." + strings.Repeat("0", int(-exp-n)) + digits
	default:
		return sign + digits + "e" + strconv.FormatInt(exp, 10)
	}
}
