package reply

import "clinic-voice-go/internal/types"

const (
	Booking   = "予約のご希望ですね。新患の方は新患フォームをご記入ください。既存の方は候補日時をお知らせください。"
	Insurance = "保険に関するご質問ですね。プランにより自己負担が異なります。具体的な金額は窓口でのご案内となります。"
	CashPay   = "自費料金のご質問ですね。内容により費用が異なります。代表的な費用は当院ウェブサイトに掲載しています。"
	Default   = "ご用件を承りました。内容を確認のうえ、折り返しご案内いたします。"
)

// Compose returns the canned reply for intent. Unknown values get the
// default reply.
func Compose(intent types.Intent) string {
	switch intent {
	case types.IntentBooking:
		return Booking
	case types.IntentInsurance:
		return Insurance
	case types.IntentCashPay:
		return CashPay
	default:
		return Default
	}
}
