package email

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
	"time"
)

func send(to, subject, body string) error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}
	if host == "" || port == "" || user == "" || pass == "" || from == "" {
		return fmt.Errorf("SMTP environment variables missing")
	}
	addr := fmt.Sprintf("%s:%s", host, port)
	auth := smtp.PlainAuth("", user, pass, host)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body))
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
}

func SendWelcome(to string) error {
	subject := "欢迎使用C3题库"
	body := "感谢注册C3安全员考试题库，祝你顺利通过考试！"
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] welcome sent to %s", to)
	return nil
}

// SendPasswordChanged alerts the account owner after a password update.
func SendPasswordChanged(to string) error {
	subject := "密码已修改"
	body := "你的账号密码刚刚被修改。如果不是你本人操作，请立即联系我们。"
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] password change notice sent to %s", to)
	return nil
}

// SendPaymentReceipt notifies a user that the paid term was activated.
func SendPaymentReceipt(to string, amountCents int64, currency string, expiresAt time.Time) error {
	subject := "会员开通成功"
	body := fmt.Sprintf("已收到付款 %.2f %s。\n会员有效期至：%s。\n祝学习顺利！",
		float64(amountCents)/100, currency, expiresAt.Format("2006-01-02"))
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] payment receipt sent to %s", to)
	return nil
}

// SendReferralReward notifies either side of a referral that bonus days landed.
func SendReferralReward(to string, days int) error {
	subject := "推荐奖励到账"
	body := fmt.Sprintf("你获得了 %d 天会员奖励，已自动叠加到你的有效期。", days)
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] referral reward notice sent to %s", to)
	return nil
}

// SendUpgradeSuggestion promotes the paid membership to free users.
func SendUpgradeSuggestion(to string) error {
	subject := "开通会员，解锁全部题库功能"
	body := "开通会员即可使用模拟考试、分类统计等全部功能，助你高效备考。"
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] upgrade suggestion sent to %s", to)
	return nil
}
