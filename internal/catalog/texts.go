package catalog

import (
	"sort"
	"strings"
)

// Supported languages.
const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

// Text is a message in several languages keyed by language code.
type Text map[string]string

// In returns the text for lang, falling back to Arabic, then English, then
// any non-empty translation.
func (t Text) In(lang string) string {
	if v := t[lang]; v != "" {
		return v
	}
	for _, fb := range []string{LangArabic, LangEnglish} {
		if v := t[fb]; v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t[k] != "" {
			return t[k]
		}
	}
	return ""
}

// Message keys.
const (
	MsgWelcome           = "welcome"
	MsgChooseLanguage    = "choose_language"
	MsgInvalidOption     = "invalid_option"
	MsgChooseFilling     = "choose_filling"
	MsgOrderPrompt       = "order_prompt"
	MsgOrderLineAdded    = "order_line_added"
	MsgOrderEmpty        = "order_empty"
	MsgAskName           = "ask_name"
	MsgOrderSummary      = "order_summary"
	MsgProofRequest      = "proof_request"
	MsgProofReminder     = "proof_reminder"
	MsgConfirmPayment    = "confirm_payment"
	MsgOrderSubmitted    = "order_submitted"
	MsgSubmittedWait     = "submitted_wait"
	MsgInquiryPrompt     = "inquiry_prompt"
	MsgInquiryNotFound   = "inquiry_not_found"
	MsgInquiryStatus     = "inquiry_status"
	MsgConfirmCancel     = "confirm_cancel"
	MsgOrderCancelled    = "order_cancelled"
	MsgCancelRefused     = "cancel_refused"
	MsgOffersHeader      = "offers_header"
	MsgNoOffers          = "no_offers"
	MsgNoMenu            = "no_menu"
	MsgSupportStarted    = "support_started"
	MsgSupportWaiting    = "support_waiting"
	MsgSupportEscalated  = "support_escalated"
	MsgSupportBusy       = "support_busy"
	MsgSessionEnded      = "session_ended"
	MsgSessionUnknown    = "session_unknown"
	MsgSessionEndConfirm = "session_end_confirm"
	MsgRatingPrompt      = "rating_prompt"
	MsgFeedbackPrompt    = "feedback_prompt"
	MsgFeedbackThanks    = "feedback_thanks"
	MsgServiceError      = "service_error"
	MsgStatusGeneric     = "status_generic"
)

var defaultTexts = map[string]Text{
	MsgWelcome: {
		LangArabic:  "👋 أهلاً بك في {shop}!\nاختر رقماً من القائمة:",
		LangEnglish: "👋 Welcome to {shop}!\nReply with a number:",
	},
	MsgChooseLanguage: {
		LangArabic:  "اختر اللغة / Choose a language:\n1. العربية\n2. English",
		LangEnglish: "اختر اللغة / Choose a language:\n1. العربية\n2. English",
	},
	MsgInvalidOption: {
		LangArabic:  "⚠️ الرجاء اختيار رقم صحيح من القائمة.",
		LangEnglish: "⚠️ Please choose a valid option.",
	},
	MsgChooseFilling: {
		LangArabic:  "اختر نوع الحشوة:",
		LangEnglish: "Choose a filling:",
	},
	MsgOrderPrompt: {
		LangArabic:  "📝 اكتب تفاصيل طلبك، كل صنف في رسالة. أرسل \"تم\" عند الانتهاء.",
		LangEnglish: "📝 Send your order, one item per message. Send \"done\" when finished.",
	},
	MsgOrderLineAdded: {
		LangArabic:  "✅ تمت الإضافة. أرسل صنفاً آخر أو \"تم\" للإنهاء.",
		LangEnglish: "✅ Added. Send another item or \"done\" to finish.",
	},
	MsgOrderEmpty: {
		LangArabic:  "لم تضف أي صنف بعد. اكتب طلبك أولاً.",
		LangEnglish: "Your order is empty. Send at least one item first.",
	},
	MsgAskName: {
		LangArabic:  "ما الاسم الذي نكتبه على الطلب؟",
		LangEnglish: "What name should we put on the order?",
	},
	MsgOrderSummary: {
		LangArabic:  "🧾 طلب رقم {id}\nالاسم: {name}\n{details}",
		LangEnglish: "🧾 Order {id}\nName: {name}\n{details}",
	},
	MsgProofRequest: {
		LangArabic:  "💳 أرسل صورة إيصال التحويل لإكمال الطلب.",
		LangEnglish: "💳 Send a photo of your payment receipt to complete the order.",
	},
	MsgProofReminder: {
		LangArabic:  "📷 ننتظر صورة إيصال الدفع.",
		LangEnglish: "📷 We are waiting for a photo of the payment receipt.",
	},
	MsgConfirmPayment: {
		LangArabic:  "وصلت الصورة. هل نعتمد الطلب؟\n1. تأكيد\n2. إرسال صورة أخرى",
		LangEnglish: "Receipt received. Submit the order?\n1. Confirm\n2. Send another photo",
	},
	MsgOrderSubmitted: {
		LangArabic:  "✅ تم استلام طلبك رقم {id}. سنبلغك بكل تحديث.",
		LangEnglish: "✅ Order {id} received. We will keep you posted.",
	},
	MsgSubmittedWait: {
		LangArabic:  "طلبك قيد المراجعة، سنرد عليك قريباً.",
		LangEnglish: "Your order is being reviewed, we will reply shortly.",
	},
	MsgInquiryPrompt: {
		LangArabic:  "🔎 أرسل رقم الطلب.",
		LangEnglish: "🔎 Send your order number.",
	},
	MsgInquiryNotFound: {
		LangArabic:  "❌ لم نجد طلباً بالرقم {id}.",
		LangEnglish: "❌ No order found with number {id}.",
	},
	MsgInquiryStatus: {
		LangArabic:  "📦 حالة الطلب {id}: {status}",
		LangEnglish: "📦 Order {id} status: {status}",
	},
	MsgConfirmCancel: {
		LangArabic:  "هل تريد إلغاء الطلب {id}؟\n1. نعم\n2. لا",
		LangEnglish: "Cancel order {id}?\n1. Yes\n2. No",
	},
	MsgOrderCancelled: {
		LangArabic:  "تم إلغاء الطلب {id}.",
		LangEnglish: "Order {id} has been cancelled.",
	},
	MsgCancelRefused: {
		LangArabic:  "لا يمكن إلغاء الطلب {id} الآن.",
		LangEnglish: "Order {id} can no longer be cancelled.",
	},
	MsgOffersHeader: {
		LangArabic:  "🔥 العروض الحالية:",
		LangEnglish: "🔥 Current offers:",
	},
	MsgNoOffers: {
		LangArabic:  "لا توجد عروض حالياً.",
		LangEnglish: "There are no offers right now.",
	},
	MsgNoMenu: {
		LangArabic:  "لم يتم رفع المنيو بعد.",
		LangEnglish: "The menu has not been uploaded yet.",
	},
	MsgSupportStarted: {
		LangArabic:  "👨‍💼 تم تحويلك لخدمة العملاء. رقم الجلسة {code}.\nأرسل 9 للتذكير أو 0 للعودة للقائمة.",
		LangEnglish: "👨‍💼 You are now connected to customer service. Session {code}.\nSend 9 to nudge us or 0 for the menu.",
	},
	MsgSupportWaiting: {
		LangArabic:  "سيرد عليك أحد موظفينا قريباً.",
		LangEnglish: "A team member will reply shortly.",
	},
	MsgSupportEscalated: {
		LangArabic:  "تم تذكير الفريق بطلبك.",
		LangEnglish: "We have nudged the team.",
	},
	MsgSupportBusy: {
		LangArabic:  "تعذر فتح جلسة الآن، حاول لاحقاً.",
		LangEnglish: "We could not open a session right now, please try later.",
	},
	MsgSessionEnded: {
		LangArabic:  "✅ انتهت جلسة خدمة العملاء. شكراً لتواصلك.",
		LangEnglish: "✅ Your customer service session has ended. Thank you.",
	},
	MsgSessionUnknown: {
		LangArabic:  "لا توجد جلسة بالرقم {code}.",
		LangEnglish: "No session with code {code}.",
	},
	MsgSessionEndConfirm: {
		LangArabic:  "تم إنهاء الجلسة {code}.",
		LangEnglish: "Session {code} ended.",
	},
	MsgRatingPrompt: {
		LangArabic:  "⭐ كيف تقيم طلبك {id}؟ أرسل رقماً من 1 إلى 5.",
		LangEnglish: "⭐ How was order {id}? Reply 1 to 5.",
	},
	MsgFeedbackPrompt: {
		LangArabic:  "شكراً! هل لديك ملاحظة تود إضافتها؟",
		LangEnglish: "Thanks! Anything you would like to add?",
	},
	MsgFeedbackThanks: {
		LangArabic:  "🙏 شكراً لملاحظاتك.",
		LangEnglish: "🙏 Thank you for the feedback.",
	},
	MsgServiceError: {
		LangArabic:  "حدث خطأ مؤقت، حاول مرة أخرى.",
		LangEnglish: "Something went wrong, please try again.",
	},
	MsgStatusGeneric: {
		LangArabic:  "🔔 تحديث حالة طلبك {id}: {status}",
		LangEnglish: "🔔 Order {id} update: {status}",
	},
	"status_confirmed": {
		LangArabic:  "✅ تم تأكيد طلبك {id}.",
		LangEnglish: "✅ Order {id} is confirmed.",
	},
	"status_preparing": {
		LangArabic:  "👨‍🍳 طلبك {id} قيد التحضير.",
		LangEnglish: "👨‍🍳 Order {id} is being prepared.",
	},
	"status_out_for_delivery": {
		LangArabic:  "🛵 طلبك {id} في الطريق إليك.",
		LangEnglish: "🛵 Order {id} is on its way.",
	},
	"status_delivered": {
		LangArabic:  "🎉 تم تسليم طلبك {id}. بالعافية!",
		LangEnglish: "🎉 Order {id} was delivered. Enjoy!",
	},
	"status_cancelled": {
		LangArabic:  "❌ تم إلغاء طلبك {id}.",
		LangEnglish: "❌ Order {id} was cancelled.",
	},
}

var statusLabels = map[string]Text{
	"awaiting_payment": {LangArabic: "بانتظار الدفع", LangEnglish: "awaiting payment"},
	"pending":          {LangArabic: "جاري المراجعة", LangEnglish: "pending"},
	"confirmed":        {LangArabic: "مؤكد", LangEnglish: "confirmed"},
	"preparing":        {LangArabic: "جاري التحضير", LangEnglish: "preparing"},
	"out_for_delivery": {LangArabic: "في الطريق", LangEnglish: "out for delivery"},
	"delivered":        {LangArabic: "اكتمل", LangEnglish: "delivered"},
	"cancelled":        {LangArabic: "ملغي", LangEnglish: "cancelled"},
}

// Texts renders localized messages. Overrides replace individual defaults.
type Texts struct {
	shop      string
	overrides map[string]Text
}

// NewTexts builds a renderer. shop fills the {shop} placeholder.
func NewTexts(shop string, overrides map[string]Text) *Texts {
	return &Texts{shop: shop, overrides: overrides}
}

// Has reports whether key has a template.
func (t *Texts) Has(key string) bool {
	if _, ok := t.overrides[key]; ok {
		return true
	}
	_, ok := defaultTexts[key]
	return ok
}

// Render returns the message for key in lang with {placeholders} replaced.
// Unknown keys render as the empty string.
func (t *Texts) Render(lang, key string, vars map[string]string) string {
	tmpl, ok := t.overrides[key]
	if !ok {
		tmpl = defaultTexts[key]
	}
	return fill(tmpl.In(lang), t.shop, vars)
}

// StatusLabel returns the human label of an order status.
func (t *Texts) StatusLabel(lang, status string) string {
	if label, ok := statusLabels[status]; ok {
		return label.In(lang)
	}
	return status
}

func fill(s, shop string, vars map[string]string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	pairs := []string{"{shop}", shop}
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
