package boleto

import "sort"

// BankInfo is an entry of the supported bank catalog.
type BankInfo struct {
	Code string
	Name string
}

// SupportedBanks lists the banks with a built-in logo, by compensation
// code.
var SupportedBanks = []BankInfo{
	{"001", "Banco do Brasil S.A."},
	{"004", "Banco do Nordeste do Brasil S.A."},
	{"021", "Banestes S.A."},
	{"033", "Banco Santander (Brasil) S.A."},
	{"041", "Banco do Estado do Rio Grande do Sul S.A."},
	{"070", "BRB - Banco de Brasília S.A."},
	{"104", "Caixa Econômica Federal"},
	{"151", "Banco Nossa Caixa S.A."},
	{"237", "Banco Bradesco S.A."},
	{"341", "Itaú Unibanco S.A."},
	{"356", "Banco Real S.A."},
	{"389", "Banco Mercantil do Brasil S.A."},
	{"399", "HSBC Bank Brasil S.A."},
	{"409", "Unibanco - União de Bancos Brasileiros S.A."},
	{"422", "Banco Safra S.A."},
	{"745", "Banco Citibank S.A."},
	{"748", "Banco Cooperativo Sicredi S.A."},
	{"756", "Banco Cooperativo do Brasil S.A. - Bancoob"},
}

// LookupBank finds a supported bank by compensation code.
func LookupBank(code string) (BankInfo, bool) {
	i := sort.Search(len(SupportedBanks), func(i int) bool { return SupportedBanks[i].Code >= code })
	if i < len(SupportedBanks) && SupportedBanks[i].Code == code {
		return SupportedBanks[i], true
	}
	return BankInfo{}, false
}

func IsSupported(code string) bool {
	_, ok := LookupBank(code)
	return ok
}
