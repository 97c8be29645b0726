package services

import "log"

// DeliveryChannel sends a passcode to a scanner's phone. Production
// deployments plug in a real channel (Twilio SMS); development and demo
// deployments use the console channel.
type DeliveryChannel interface {
	Send(phone, code string) error
}

// ConsoleDelivery logs the passcode instead of sending it. Matches the
// demo behaviour where the passcode is surfaced directly.
type ConsoleDelivery struct{}

func NewConsoleDelivery() *ConsoleDelivery {
	return &ConsoleDelivery{}
}

func (c *ConsoleDelivery) Send(phone, code string) error {
	log.Printf("📱 Passcode for %s: %s", phone, code)
	return nil
}

// TwilioDelivery sends the passcode as an SMS through Twilio
type TwilioDelivery struct {
	twilio *TwilioService
}

func NewTwilioDelivery(twilio *TwilioService) *TwilioDelivery {
	return &TwilioDelivery{twilio: twilio}
}

func (t *TwilioDelivery) Send(phone, code string) error {
	message := "Your CarLink verification code is " + code + ". It expires in 5 minutes."
	return t.twilio.SendSMS(phone, message)
}
