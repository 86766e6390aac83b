package enums

import "fmt"

// SourceType enumerates the asynchronous payment methods offered at checkout.
type SourceType string

const (
	SourceTypePromptPay SourceType = "promptpay"
	SourceTypeTrueMoney SourceType = "truemoney"
	SourceTypeAlipay    SourceType = "alipay"
	SourceTypeAlipayCN  SourceType = "alipay_cn"
	SourceTypeWeChat    SourceType = "wechat"
)

var validSourceTypes = []SourceType{
	SourceTypePromptPay,
	SourceTypeTrueMoney,
	SourceTypeAlipay,
	SourceTypeAlipayCN,
	SourceTypeWeChat,
}

// String implements fmt.Stringer.
func (s SourceType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SourceType.
func (s SourceType) IsValid() bool {
	for _, candidate := range validSourceTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSourceType converts raw input into a SourceType. Empty input defaults to PromptPay.
func ParseSourceType(value string) (SourceType, error) {
	if value == "" {
		return SourceTypePromptPay, nil
	}
	for _, candidate := range validSourceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source type %q", value)
}
