package models

// All lists every persisted model, in migration order
func All() []interface{} {
	return []interface{}{
		&Quote{},
		&TransactionIntent{},
		&Transaction{},
		&FeeRecord{},
		&FailedTransactionRecord{},
		&EncryptedWalletKey{},
		&WalletMetadata{},
		&OnchainAddress{},
		&SecurityEvent{},
		&ContractDeployment{},
	}
}
