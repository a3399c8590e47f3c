package pedido

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/dto"
	"github.com/casadx/pedidos/internal/entity"
	"github.com/casadx/pedidos/internal/messaging"
)

// Event types published on the pedidos topic.
const (
	EventCreado            = "pedido.creado"
	EventEstadoActualizado = "pedido.estado_actualizado"
	EventEliminado         = "pedido.eliminado"
)

// Event is the payload emitted whenever a pedido changes.
type Event struct {
	Tipo       string     `json:"tipo"`
	ID         int64      `json:"id"`
	Codigo     string     `json:"codigo,omitempty"`
	Familiar   string     `json:"familiar,omitempty"`
	Estado     string     `json:"estado,omitempty"`
	TotalMonto dto.Monto  `json:"totalMonto"`
	Fecha      *time.Time `json:"fecha,omitempty"`
	OcurridoEn time.Time  `json:"ocurridoEn"`
}

func newEvent(tipo string, p *entity.Pedido) Event {
	ev := Event{Tipo: tipo, ID: p.ID, OcurridoEn: time.Now().UTC()}
	if tipo == EventEliminado {
		return ev
	}
	fecha := p.Fecha
	ev.Codigo = p.Codigo
	ev.Familiar = p.Familiar
	ev.Estado = string(p.Estado)
	ev.TotalMonto = dto.NewMonto(p.TotalMonto)
	ev.Fecha = &fecha
	return ev
}

// publish is best effort: the HTTP response never depends on the broker.
func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal pedido event", zap.String("type", ev.Tipo), zap.Error(err))
		return
	}
	msg := messaging.Message{
		Key:     []byte(fmt.Sprintf("pedido-%d", ev.ID)),
		Value:   payload,
		Headers: map[string]string{"type": ev.Tipo},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("publish pedido event",
			zap.String("type", ev.Tipo),
			zap.String("topic", s.publisher.Topic()),
			zap.Int64("id", ev.ID),
			zap.Error(err),
		)
	}
}
