// Package lot defines the record model shared by the extractor, the
// orchestration engine and the export sink.
package lot

import "fmt"

// Sentinel strings rendered into the output table. They are part of the
// external contract, not placeholders.
const (
	NotFoundText = "Не найдено"
	AbsentText   = "Отсутствует"
)

// Kind classifies a field value.
type Kind int

const (
	// KindFound marks a concretely resolved value.
	KindFound Kind = iota
	// KindNotFound marks data the page was expected to carry but did not.
	KindNotFound
	// KindAbsent marks data the page explicitly has none of. Absence of a
	// deposit is a business fact, distinct from a failed lookup.
	KindAbsent
)

// Value is a field result: a concrete string or one of two sentinels.
// The zero value is Found("").
type Value struct {
	Kind Kind
	Text string
}

// Found wraps a resolved value.
func Found(text string) Value {
	return Value{Kind: KindFound, Text: text}
}

// NotFound is the unresolved sentinel.
var NotFound = Value{Kind: KindNotFound}

// Absent is the explicitly-no-data sentinel.
var Absent = Value{Kind: KindAbsent}

// IsFound reports whether the value resolved concretely.
func (v Value) IsFound() bool {
	return v.Kind == KindFound
}

// String renders the value for output, mapping sentinels to their
// contract strings.
func (v Value) String() string {
	switch v.Kind {
	case KindNotFound:
		return NotFoundText
	case KindAbsent:
		return AbsentText
	default:
		return v.Text
	}
}

// Attachment is one document link on a lot page.
type Attachment struct {
	Name string
	URL  string
}

// Columns is the fixed output header of the primary sheet, in order.
// DocumentsColumn cells hold either the zero marker or a cross-reference
// into the Documents sheet.
var Columns = []string{
	"Номер аукциона / лота",
	"Адрес объекта",
	"Начальная цена",
	"Шаг аукциона",
	"Размер задатка",
	"Дата и время начала / окончания торгов",
	DocumentsColumn,
	"Статус аукциона",
	"Информация о должнике",
	"Описание объекта",
}

// DocumentsColumn is the header of the attachment cross-reference column.
const DocumentsColumn = "Документы"

// Record is one extracted lot. Every field is always present; unresolved
// fields carry a sentinel rather than being omitted.
type Record struct {
	SourceURL string

	LotNumber   Value
	TradeNumber Value
	Address     Value
	StartPrice  Value
	BidStep     Value
	Deposit     Value
	TradePeriod string
	Status      Value
	DebtorInfo  string
	Description Value

	Documents []Attachment
}

// Key is the entity key used on both sheets: "<trade> / <lot>", with
// sentinels rendered when a number did not resolve.
func (r *Record) Key() string {
	return fmt.Sprintf("%s / %s", r.TradeNumber, r.LotNumber)
}

// Empty reports whether the record failed the quality gate: neither a
// starting price nor an address resolved. Such records are skipped and
// their identifiers stay unseen so the next run retries them.
func (r *Record) Empty() bool {
	return !r.StartPrice.IsFound() && !r.Address.IsFound()
}

// Row renders the record in Columns order. The documents cell is left
// blank; the sink fills it with the cross-reference.
func (r *Record) Row() []string {
	return []string{
		r.Key(),
		r.Address.String(),
		r.StartPrice.String(),
		r.BidStep.String(),
		r.Deposit.String(),
		r.TradePeriod,
		"",
		r.Status.String(),
		r.DebtorInfo,
		r.Description.String(),
	}
}
