package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

// RPC описывает подмножество методов rpc.Client, которым пользуется адаптер.
type RPC interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

type Client struct {
	rpc       RPC
	programID solana.PublicKey
}

func NewClient(rpcClient RPC, programID string) (*Client, error) {
	pid, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("chain: некорректный адрес программы: %w", err)
	}
	return &Client{rpc: rpcClient, programID: pid}, nil
}

// NewRPCClient подключается к узлу по HTTP.
func NewRPCClient(endpoint string) *rpc.Client {
	return rpc.New(endpoint)
}

func (c *Client) ProgramID() string {
	return c.programID.String()
}

func (c *Client) EscrowAddress(gigID uuid.UUID) (string, error) {
	addr, err := EscrowAddress(c.programID, gigID)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось вычислить адрес эскроу")
	}
	return addr.String(), nil
}

func ParseSignature(signature string) (solana.Signature, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return solana.Signature{}, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректная подпись транзакции")
	}
	return sig, nil
}

func (c *Client) SignatureStatus(ctx context.Context, signature string) (SignatureStatus, error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return "", err
	}
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "узел сети не ответил на запрос статуса")
	}
	if out == nil || len(out.Value) == 0 {
		return StatusNotFound, nil
	}
	return mapStatus(out.Value[0]), nil
}

// UserAccountExists проверяет, создана ли учётная запись кошелька в программе.
func (c *Client) UserAccountExists(ctx context.Context, wallet solana.PublicKey) (bool, error) {
	addr, err := UserAccountAddress(c.programID, wallet)
	if err != nil {
		return false, err
	}
	_, err = c.rpc.GetAccountInfo(ctx, addr)
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeInternal, "узел сети не ответил на запрос аккаунта")
	}
	return true, nil
}

// AccountView и InstructionView: JSON-представление инструкций для клиента.
type AccountView struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"is_signer"`
	Writable bool   `json:"is_writable"`
}

type InstructionView struct {
	ProgramID string        `json:"program_id"`
	Accounts  []AccountView `json:"accounts"`
	Data      string        `json:"data"`
}

// UnsignedTx содержит неподписанную legacy-транзакцию в base64 и её состав.
type UnsignedTx struct {
	Transaction   string            `json:"transaction"`
	Blockhash     string            `json:"recent_blockhash"`
	FeePayer      string            `json:"fee_payer"`
	EscrowAddress string            `json:"escrow_address"`
	Instructions  []InstructionView `json:"instructions"`
	SetupIncluded bool              `json:"setup_included"`
}

// BuildUnsigned собирает транзакцию операции. Если у плательщика ещё нет
// учётной записи в программе, первой идёт init_user.
func (c *Client) BuildUnsigned(ctx context.Context, req BuildRequest) (*UnsignedTx, error) {
	acc, err := c.resolveAccounts(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "не удалось подготовить аккаунты транзакции")
	}

	primary, err := actionInstruction(req, acc)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось собрать инструкцию")
	}

	exists, err := c.UserAccountExists(ctx, acc.payer)
	if err != nil {
		return nil, err
	}
	ixs := []solana.Instruction{primary}
	if !exists {
		setup, err := initUserInstruction(c.programID, acc.payer)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось собрать init_user")
		}
		ixs = append([]solana.Instruction{setup}, ixs...)
	}

	bh, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "узел сети не вернул blockhash")
	}
	if bh == nil || bh.Value == nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "пустой ответ getLatestBlockhash")
	}

	tx, err := solana.NewTransaction(ixs, bh.Value.Blockhash, solana.TransactionPayer(acc.payer))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось собрать транзакцию")
	}
	// Пустые слоты под подписи: кошелёк заполняет их сам.
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать транзакцию")
	}

	views := make([]InstructionView, 0, len(ixs))
	for _, ix := range ixs {
		data, err := ix.Data()
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать инструкцию")
		}
		view := InstructionView{
			ProgramID: ix.ProgramID().String(),
			Data:      base64.StdEncoding.EncodeToString(data),
		}
		for _, m := range ix.Accounts() {
			view.Accounts = append(view.Accounts, AccountView{
				Pubkey:   m.PublicKey.String(),
				Signer:   m.IsSigner,
				Writable: m.IsWritable,
			})
		}
		views = append(views, view)
	}

	return &UnsignedTx{
		Transaction:   base64.StdEncoding.EncodeToString(raw),
		Blockhash:     bh.Value.Blockhash.String(),
		FeePayer:      acc.payer.String(),
		EscrowAddress: acc.escrow.String(),
		Instructions:  views,
		SetupIncluded: !exists,
	}, nil
}
