package callflow

import "fmt"

const (
	PromptGreeting     = "お電話ありがとうございます。予約は1、保険は2、自費診療は3を押してください。オペレーターは0です。押さない場合は録音に進みます。"
	PromptBooking      = "予約に関するメッセージをどうぞ。"
	PromptInsurance    = "保険に関するご質問をどうぞ。"
	PromptCashPay      = "自費診療に関するご質問をどうぞ。"
	PromptUnrecognized = "選択が認識できませんでした。録音に進みます。"
	PromptGeneric      = "ピー音の後にご用件をどうぞ。"
	PromptHandoff      = "担当者におつなぎします。"
	PromptApology      = "うまく聞き取れませんでした。もう一度ゆっくりお話しください。"
)

// topicPrompts maps menu digits that lead to a recording.
var topicPrompts = map[string]string{
	"1": PromptBooking,
	"2": PromptInsurance,
	"3": PromptCashPay,
}

func beepPrompt(maxSec int) string {
	return fmt.Sprintf("ピー音の後、%d秒まで録音できます。", maxSec)
}
