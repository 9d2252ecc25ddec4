package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/The-Morpho/drivingSchool-sub000/config"

	"github.com/IBM/sarama"
)

// NewSaramaConfig 按配置组装课程事件链路的 sarama 配置
// 生产端 WaitForAll + 哈希分区：配对键决定分区，同一配对的事件在一个分区里保序；
// 认证机制由 SASLMechanism 决定，留空且带账号密码时用 PLAIN
func NewSaramaConfig(cfg *config.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Interceptors = []sarama.ProducerInterceptor{NewEventInterceptor()}

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin

	switch cfg.SASLMechanism {
	case "SCRAM-SHA-256":
		applySASL(sc, cfg, sarama.SASLTypeSCRAMSHA256)
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
		}
	case "SCRAM-SHA-512":
		applySASL(sc, cfg, sarama.SASLTypeSCRAMSHA512)
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
		}
	case "":
		if cfg.Username != "" && cfg.Password != "" {
			applySASL(sc, cfg, sarama.SASLTypePlaintext)
		}
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", cfg.SASLMechanism)
	}

	if cfg.UseTLS {
		tlsConfig, err := newTLSConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
		if err != nil {
			return nil, err
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsConfig
	}

	return sc, nil
}

func applySASL(sc *sarama.Config, cfg *config.KafkaConfig, mechanism sarama.SASLMechanism) {
	sc.Net.SASL.Enable = true
	sc.Net.SASL.Mechanism = mechanism
	sc.Net.SASL.User = cfg.Username
	sc.Net.SASL.Password = cfg.Password
	sc.Net.SASL.Handshake = true
}

func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, err
		}
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
