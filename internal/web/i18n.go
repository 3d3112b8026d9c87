package web

import (
	"net/http"

	"golang.org/x/text/language"

	"archsite/internal/content"
)

// Interface strings; page copy itself lives in the database.
var messages = map[string]content.Localized{
	"nav.home":      {En: "Home", Ar: "الرئيسية"},
	"nav.about":     {En: "About", Ar: "من نحن"},
	"nav.projects":  {En: "Projects", Ar: "المشاريع"},
	"nav.blog":      {En: "Journal", Ar: "المدونة"},
	"nav.awards":    {En: "Awards", Ar: "الجوائز"},
	"nav.team":      {En: "Team", Ar: "الفريق"},
	"nav.services":  {En: "Services", Ar: "الخدمات"},
	"nav.contact":   {En: "Contact", Ar: "تواصل معنا"},
	"lang.switch":   {En: "العربية", Ar: "English"},
	"home.featured": {En: "Featured projects", Ar: "مشاريع مختارة"},
	"home.latest":   {En: "From the journal", Ar: "أحدث المقالات"},
	"home.services": {En: "What we do", Ar: "ما نقدمه"},
	"home.awards":   {En: "Recognition", Ar: "التكريمات"},
	"more":          {En: "View all", Ar: "عرض الكل"},
	"read.more":     {En: "Read more", Ar: "اقرأ المزيد"},
	"project.year":  {En: "Year", Ar: "السنة"},
	"project.loc":   {En: "Location", Ar: "الموقع"},
	"project.cat":   {En: "Category", Ar: "الفئة"},
	"filter.all":    {En: "All", Ar: "الكل"},
	"empty":         {En: "Nothing here yet.", Ar: "لا يوجد محتوى بعد."},
	"form.name":     {En: "Name", Ar: "الاسم"},
	"form.email":    {En: "Email", Ar: "البريد الإلكتروني"},
	"form.phone":    {En: "Phone", Ar: "الهاتف"},
	"form.message":  {En: "Message", Ar: "الرسالة"},
	"form.send":     {En: "Send message", Ar: "إرسال"},
	"form.thanks":   {En: "Thank you. We will be in touch soon.", Ar: "شكراً لك. سنتواصل معك قريباً."},
	"form.invalid":  {En: "Please check the highlighted fields.", Ar: "يرجى مراجعة الحقول المحددة."},
	"form.limited":  {En: "Too many messages. Please try again later.", Ar: "عدد كبير من الرسائل. يرجى المحاولة لاحقاً."},
	"error.404":     {En: "Page not found", Ar: "الصفحة غير موجودة"},
	"error.500":     {En: "Something went wrong", Ar: "حدث خطأ ما"},
	"footer.rights": {En: "All rights reserved.", Ar: "جميع الحقوق محفوظة."},
}

func translate(l content.Locale, key string) string {
	if m, ok := messages[key]; ok {
		return m.Get(l)
	}
	return key
}

var localeMatcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// preferredLocale picks en or ar from the lang cookie, then Accept-Language.
func preferredLocale(r *http.Request, def content.Locale) content.Locale {
	if c, err := r.Cookie(langCookie); err == nil {
		if l, ok := content.ParseLocale(c.Value); ok {
			return l
		}
	}
	if al := r.Header.Get("Accept-Language"); al != "" {
		tags, _, err := language.ParseAcceptLanguage(al)
		if err == nil && len(tags) > 0 {
			_, idx, conf := localeMatcher.Match(tags...)
			if conf != language.No {
				return content.Locales[idx]
			}
		}
	}
	if def == "" {
		return content.English
	}
	return def
}
