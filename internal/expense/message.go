package expense

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// GenericFailureMessage is sent when a receipt could not be read at all
const GenericFailureMessage = "ขออภัย ไม่สามารถอ่านใบเสร็จได้ กรุณาถ่ายรูปใหม่ให้ชัดเจนแล้วส่งอีกครั้ง"

// categoryNames are the Thai display names of the item categories
var categoryNames = map[string]string{
	"food":      "อาหาร",
	"beverage":  "เครื่องดื่ม",
	"household": "ของใช้ในบ้าน",
	"clothing":  "เสื้อผ้า",
	"medicine":  "ยา",
	"cosmetics": "เครื่องสำอาง",
	"other":     "อื่นๆ",
}

func categoryName(label string) string {
	if name, ok := categoryNames[label]; ok {
		return name
	}
	return label
}

// FormatBaht renders an amount in Thai baht
func FormatBaht(amount decimal.Decimal) string {
	currency := money.GetCurrency(money.THB)
	satang := amount.Shift(int32(currency.Fraction)).Round(0).IntPart()
	return money.New(satang, money.THB).Display()
}

// FormatExpense renders a saved expense for the user
func FormatExpense(e *Expense) string {
	var b strings.Builder
	fmt.Fprintf(&b, "บันทึกค่าใช้จ่ายเรียบร้อย\n")
	fmt.Fprintf(&b, "ร้าน: %s\n", e.Merchant)
	fmt.Fprintf(&b, "วันที่: %s\n", e.ISODate())
	fmt.Fprintf(&b, "ยอดรวม: %s\n", FormatBaht(e.Total))
	if len(e.Items) > 0 {
		b.WriteString("\nรายการ:\n")
		for _, item := range e.Items {
			fmt.Fprintf(&b, "- %s x%d %s (%s)\n", item.Name, item.Quantity, FormatBaht(item.Price), categoryName(item.Category))
		}
	}
	if e.Error != "" {
		b.WriteString("\nอ่านใบเสร็จได้ไม่ครบ กรุณาตรวจสอบข้อมูลอีกครั้ง\n")
	} else if len(e.Warnings) > 0 {
		b.WriteString("\nยอดรวมไม่ตรงกับรายการสินค้า กรุณาตรวจสอบ\n")
	}
	fmt.Fprintf(&b, "\nความแม่นยำ: %.0f%%", e.Confidence*100)
	return b.String()
}

// FormatDailySummary renders a daily summary
func FormatDailySummary(s *DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "สรุปค่าใช้จ่ายประจำวันที่ %s\n", s.Date)
	if s.ReceiptCount == 0 {
		b.WriteString("ไม่มีค่าใช้จ่ายในวันนี้")
		return b.String()
	}
	fmt.Fprintf(&b, "ยอดรวม: %s\n", FormatBaht(s.Total))
	fmt.Fprintf(&b, "จำนวนใบเสร็จ: %d ใบ\n", s.ReceiptCount)
	writeCategories(&b, s.TopCategories)
	return strings.TrimRight(b.String(), "\n")
}

// FormatMonthlySummary renders a monthly summary
func FormatMonthlySummary(s *MonthlySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "สรุปค่าใช้จ่ายประจำเดือน %02d/%d\n", int(s.Month), s.Year)
	if s.ReceiptCount == 0 {
		b.WriteString("ไม่มีค่าใช้จ่ายในเดือนนี้")
		return b.String()
	}
	fmt.Fprintf(&b, "ยอดรวม: %s\n", FormatBaht(s.Total))
	fmt.Fprintf(&b, "จำนวนใบเสร็จ: %d ใบ\n", s.ReceiptCount)
	fmt.Fprintf(&b, "เฉลี่ยต่อวัน: %s\n", FormatBaht(s.AveragePerDay))
	writeCategories(&b, s.Categories)
	return strings.TrimRight(b.String(), "\n")
}

func writeCategories(b *strings.Builder, categories []CategoryTotal) {
	if len(categories) == 0 {
		return
	}
	b.WriteString("\nหมวดหมู่:\n")
	for _, c := range categories {
		fmt.Fprintf(b, "- %s: %s\n", categoryName(c.Category), FormatBaht(c.Amount))
	}
}
