package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/wudi/boletopdf/boleto"
)

// slipFile is the on-disk batch description. Extra texts and images are
// lists because configuration keys are case-folded and field names are not.
type slipFile struct {
	Slips []slipSpec `mapstructure:"slips"`
}

type slipSpec struct {
	Bank             bankSpec     `mapstructure:"bank"`
	Account          accountSpec  `mapstructure:"account"`
	Title            titleSpec    `mapstructure:"title"`
	PaymentLocation  string       `mapstructure:"payment_location"`
	ProcessingDate   string       `mapstructure:"processing_date"`
	Barcode          string       `mapstructure:"barcode"`
	TypeableLine     string       `mapstructure:"typeable_line"`
	PayerInstruction string       `mapstructure:"payer_instruction"`
	Instructions     []string     `mapstructure:"instructions"`
	ExtraTexts       []extraText  `mapstructure:"extra_texts"`
	ExtraImages      []extraImage `mapstructure:"extra_images"`
}

type bankSpec struct {
	Code  string `mapstructure:"code"`
	Digit string `mapstructure:"digit"`
	Name  string `mapstructure:"name"`
	Logo  string `mapstructure:"logo"`
}

type accountSpec struct {
	Branch         string `mapstructure:"branch"`
	BranchDigit    string `mapstructure:"branch_digit"`
	Number         string `mapstructure:"number"`
	NumberDigit    string `mapstructure:"number_digit"`
	Wallet         string `mapstructure:"wallet"`
	CollectionType string `mapstructure:"collection_type"`
}

type titleSpec struct {
	Payee          partySpec  `mapstructure:"payee"`
	Payer          *partySpec `mapstructure:"payer"`
	Guarantor      *partySpec `mapstructure:"guarantor"`
	DocumentNumber string     `mapstructure:"document_number"`
	OurNumber      string     `mapstructure:"our_number"`
	OurNumberDigit string     `mapstructure:"our_number_digit"`
	Currency       string     `mapstructure:"currency"`
	DocumentType   string     `mapstructure:"document_type"`
	Acceptance     string     `mapstructure:"acceptance"`
	DocumentDate   string     `mapstructure:"document_date"`
	DueDate        string     `mapstructure:"due_date"`
	Value          string     `mapstructure:"value"`
	Discount       string     `mapstructure:"discount"`
	Deduction      string     `mapstructure:"deduction"`
	Interest       string     `mapstructure:"interest"`
	Extra          string     `mapstructure:"extra"`
	Charged        string     `mapstructure:"charged"`
}

type partySpec struct {
	Name      string        `mapstructure:"name"`
	TaxID     string        `mapstructure:"tax_id"`
	Addresses []addressSpec `mapstructure:"addresses"`
}

type addressSpec struct {
	Street   string `mapstructure:"street"`
	Number   string `mapstructure:"number"`
	District string `mapstructure:"district"`
	City     string `mapstructure:"city"`
	State    string `mapstructure:"state"`
	ZIP      string `mapstructure:"zip"`
}

type extraText struct {
	Field string `mapstructure:"field"`
	Text  string `mapstructure:"text"`
}

type extraImage struct {
	Field string `mapstructure:"field"`
	Path  string `mapstructure:"path"`
}

// loadSlips reads a YAML, JSON or TOML slip file. Relative image paths are
// resolved against the file's directory.
func loadSlips(path string) ([]*boleto.Boleto, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read slips: %w", err)
	}
	var file slipFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode slips: %w", err)
	}
	if len(file.Slips) == 0 {
		return nil, fmt.Errorf("%s: no slips", path)
	}
	base := filepath.Dir(path)
	out := make([]*boleto.Boleto, len(file.Slips))
	for i := range file.Slips {
		b, err := file.Slips[i].toBoleto(base)
		if err != nil {
			return nil, fmt.Errorf("slip %d: %w", i+1, err)
		}
		out[i] = b
	}
	return out, nil
}

func (s *slipSpec) toBoleto(base string) (*boleto.Boleto, error) {
	if len(s.Instructions) > boleto.InstructionSlots {
		return nil, fmt.Errorf("%d instructions, at most %d fit", len(s.Instructions), boleto.InstructionSlots)
	}
	b := &boleto.Boleto{
		Bank: boleto.Bank{Code: s.Bank.Code, Digit: s.Bank.Digit, Name: s.Bank.Name},
		Account: boleto.Account{
			Branch:      s.Account.Branch,
			BranchDigit: s.Account.BranchDigit,
			Number:      s.Account.Number,
			NumberDigit: s.Account.NumberDigit,
		},
		PaymentLocation:  s.PaymentLocation,
		Barcode:          s.Barcode,
		TypeableLine:     s.TypeableLine,
		PayerInstruction: s.PayerInstruction,
	}
	copy(b.Instructions[:], s.Instructions)
	if s.Account.Wallet != "" {
		b.Account.Wallet = &boleto.Wallet{
			Code:           s.Account.Wallet,
			CollectionType: boleto.CollectionType(strings.ToUpper(s.Account.CollectionType)),
		}
	}
	if s.Bank.Logo != "" {
		img, err := loadImage(base, s.Bank.Logo)
		if err != nil {
			return nil, fmt.Errorf("bank logo: %w", err)
		}
		b.Bank.Logo = img
	}

	var err error
	if b.ProcessingDate, err = parseDate(s.ProcessingDate); err != nil {
		return nil, fmt.Errorf("processing_date: %w", err)
	}
	if b.Title, err = s.Title.toTitle(); err != nil {
		return nil, err
	}

	if len(s.ExtraTexts) > 0 {
		b.ExtraTexts = make(map[string]string, len(s.ExtraTexts))
		for _, t := range s.ExtraTexts {
			b.ExtraTexts[t.Field] = t.Text
		}
	}
	if len(s.ExtraImages) > 0 {
		b.ExtraImages = make(map[string]image.Image, len(s.ExtraImages))
		for _, im := range s.ExtraImages {
			img, err := loadImage(base, im.Path)
			if err != nil {
				return nil, fmt.Errorf("extra image %s: %w", im.Field, err)
			}
			b.ExtraImages[im.Field] = img
		}
	}
	return b, nil
}

func (t *titleSpec) toTitle() (boleto.Title, error) {
	out := boleto.Title{
		DocumentNumber: t.DocumentNumber,
		OurNumber:      t.OurNumber,
		OurNumberDigit: t.OurNumberDigit,
		Currency:       boleto.Currency(strings.ToUpper(t.Currency)),
		DocumentType:   t.DocumentType,
		Acceptance:     boleto.Acceptance(strings.ToUpper(t.Acceptance)),
	}
	var err error
	if out.Payee, err = t.Payee.toParty(); err != nil {
		return out, fmt.Errorf("payee: %w", err)
	}
	if t.Payer != nil {
		p, err := t.Payer.toParty()
		if err != nil {
			return out, fmt.Errorf("payer: %w", err)
		}
		out.Payer = &p
	}
	if t.Guarantor != nil {
		p, err := t.Guarantor.toParty()
		if err != nil {
			return out, fmt.Errorf("guarantor: %w", err)
		}
		out.Guarantor = &p
	}
	if out.DocumentDate, err = parseDate(t.DocumentDate); err != nil {
		return out, fmt.Errorf("document_date: %w", err)
	}
	if out.DueDate, err = parseDate(t.DueDate); err != nil {
		return out, fmt.Errorf("due_date: %w", err)
	}

	amounts := []struct {
		name string
		raw  string
		dst  *decimal.NullDecimal
	}{
		{"value", t.Value, &out.Value},
		{"discount", t.Discount, &out.Discount},
		{"deduction", t.Deduction, &out.Deduction},
		{"interest", t.Interest, &out.Interest},
		{"extra", t.Extra, &out.Extra},
		{"charged", t.Charged, &out.Charged},
	}
	for _, a := range amounts {
		if *a.dst, err = parseMoney(a.raw); err != nil {
			return out, fmt.Errorf("%s: %w", a.name, err)
		}
	}
	return out, nil
}

func (p *partySpec) toParty() (boleto.Party, error) {
	out := boleto.Party{Name: p.Name}
	if p.TaxID != "" {
		id, err := boleto.ParseCPRF(p.TaxID)
		if err != nil {
			return out, err
		}
		out.TaxID = id
	}
	for _, a := range p.Addresses {
		out.Addresses = append(out.Addresses, boleto.Address(a))
	}
	return out, nil
}

// parseDate accepts dd/MM/yyyy and ISO dates. Blank is absent.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := boleto.ParseDate(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want dd/mm/yyyy or yyyy-mm-dd", s)
	}
	return t, nil
}

// parseMoney accepts 1234.56 and the pt-BR 1.234,56 form. Blank is
// absent.
func parseMoney(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return boleto.Money(d), nil
}

func loadImage(base, path string) (image.Image, error) {
	if path == "" {
		return nil, errors.New("empty image path")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
