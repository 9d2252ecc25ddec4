package kafka

import "github.com/xdg-go/scram"

// 配置层只暴露 SCRAM-SHA-256 / SCRAM-SHA-512 两种机制
var (
	SHA256 scram.HashGeneratorFcn = scram.SHA256
	SHA512 scram.HashGeneratorFcn = scram.SHA512
)

// XDGSCRAMClient 把 xdg-go/scram 的会话套成 sarama 的 SCRAMClient
type XDGSCRAMClient struct {
	conversation *scram.ClientConversation
	scram.HashGeneratorFcn
}

func (x *XDGSCRAMClient) Begin(userName, password, authzID string) error {
	client, err := x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.conversation = client.NewConversation()
	return nil
}

func (x *XDGSCRAMClient) Step(challenge string) (string, error) {
	return x.conversation.Step(challenge)
}

func (x *XDGSCRAMClient) Done() bool {
	return x.conversation.Done()
}
